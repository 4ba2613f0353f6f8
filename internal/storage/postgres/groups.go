package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

const groupColumns = "id, account_id, name, contribution_amount, current_turn_index, cycle_start_date, next_turn_date, created_at"

const memberColumns = "id, group_id, account_id, name, phone, position, created_at"

const turnColumns = "id, group_id, account_id, member_id, turn_number, amount, beneficiary_name, date"

func insertGroup(ctx context.Context, q querier, group *models.Group) error {
	_, err := q.Exec(ctx,
		"INSERT INTO groups ("+groupColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		group.ID, group.AccountID, group.Name, group.ContributionAmount, group.CurrentTurnIndex,
		group.CycleStartDate, group.NextTurnDate, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

func scanGroup(row scanner) (*models.Group, error) {
	group := &models.Group{}
	if err := row.Scan(&group.ID, &group.AccountID, &group.Name, &group.ContributionAmount,
		&group.CurrentTurnIndex, &group.CycleStartDate, &group.NextTurnDate, &group.CreatedAt); err != nil {
		return nil, err
	}
	group.CycleStartDate = utcPtr(group.CycleStartDate)
	group.NextTurnDate = utcPtr(group.NextTurnDate)
	group.CreatedAt = group.CreatedAt.UTC()
	if err := group.Validate(); err != nil {
		return nil, fmt.Errorf("malformed group row %s: %w", group.ID, err)
	}
	return group, nil
}

func scanMember(row scanner) (*models.Member, error) {
	member := &models.Member{}
	var phone *string
	if err := row.Scan(&member.ID, &member.GroupID, &member.AccountID, &member.Name,
		&phone, &member.Order, &member.CreatedAt); err != nil {
		return nil, err
	}
	member.Phone = deref(phone)
	member.CreatedAt = member.CreatedAt.UTC()
	if err := member.Validate(); err != nil {
		return nil, fmt.Errorf("malformed member row %s: %w", member.ID, err)
	}
	return member, nil
}

func scanTurn(row scanner) (*models.TurnRecord, error) {
	record := &models.TurnRecord{}
	if err := row.Scan(&record.ID, &record.GroupID, &record.AccountID, &record.MemberID,
		&record.TurnNumber, &record.Amount, &record.BeneficiaryName, &record.Date); err != nil {
		return nil, err
	}
	record.Date = record.Date.UTC()
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("malformed turn record row %s: %w", record.ID, err)
	}
	return record, nil
}

// GetGroup retrieves a group by ID.
func (s *PostgresStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return getGroup(ctx, s.pool, groupID, false)
}

func getGroup(ctx context.Context, q querier, groupID string, forUpdate bool) (*models.Group, error) {
	query := "SELECT " + groupColumns + " FROM groups WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	group, err := scanGroup(q.QueryRow(ctx, query, groupID))
	if err != nil {
		return nil, notFound(err, "group", groupID)
	}
	return group, nil
}

// GetGroupByAccount retrieves the group owned by an account.
func (s *PostgresStore) GetGroupByAccount(ctx context.Context, accountID string) (*models.Group, error) {
	group, err := scanGroup(s.pool.QueryRow(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE account_id = $1 ORDER BY created_at LIMIT 1", accountID,
	))
	if err != nil {
		return nil, notFound(err, "group for account", accountID)
	}
	return group, nil
}

// UpdateGroupSettings updates name, contribution amount and dates of a group.
func (s *PostgresStore) UpdateGroupSettings(ctx context.Context, group *models.Group) error {
	if err := group.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE groups SET name = $1, contribution_amount = $2, cycle_start_date = $3, next_turn_date = $4 WHERE id = $5",
		group.Name, group.ContributionAmount, group.CycleStartDate, group.NextTurnDate, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("group", group.ID)
	}
	return nil
}

// ListMembers returns the members of a group in rotation order.
func (s *PostgresStore) ListMembers(ctx context.Context, groupID string) ([]*models.Member, error) {
	return listMembers(ctx, s.pool, groupID)
}

func listMembers(ctx context.Context, q querier, groupID string) ([]*models.Member, error) {
	rows, err := q.Query(ctx,
		"SELECT "+memberColumns+" FROM members WHERE group_id = $1 ORDER BY position ASC", groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// AddMember locks the group and appends a member after the last position.
func (s *PostgresStore) AddMember(ctx context.Context, member *models.Member) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := getGroup(ctx, tx, member.GroupID, true); err != nil {
			return err
		}

		var maxPosition int
		if err := tx.QueryRow(ctx,
			"SELECT COALESCE(MAX(position), 0) FROM members WHERE group_id = $1", member.GroupID,
		).Scan(&maxPosition); err != nil {
			return fmt.Errorf("failed to read member positions: %w", err)
		}
		member.Order = maxPosition + 1
		if err := member.Validate(); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			"INSERT INTO members ("+memberColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
			member.ID, member.GroupID, member.AccountID, member.Name, nullString(member.Phone),
			member.Order, member.CreatedAt,
		)
		if isUniqueViolation(err) {
			return apperr.Conflict("member position %d already taken", member.Order)
		}
		if err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
		return nil
	})
}

// UpdateMember updates the name and phone of a member.
func (s *PostgresStore) UpdateMember(ctx context.Context, member *models.Member) error {
	if member.Name == "" {
		return apperr.Validation("member name is required")
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE members SET name = $1, phone = $2 WHERE id = $3 AND group_id = $4",
		member.Name, nullString(member.Phone), member.ID, member.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("member", member.ID)
	}
	return nil
}

// DeleteMember locks the group, removes a member and closes the gap in positions.
func (s *PostgresStore) DeleteMember(ctx context.Context, groupID, memberID string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := getGroup(ctx, tx, groupID, true); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, "DELETE FROM members WHERE id = $1 AND group_id = $2", memberID, groupID)
		if err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("member", memberID)
		}

		remaining, err := listMembers(ctx, tx, groupID)
		if err != nil {
			return err
		}
		for i, m := range remaining {
			want := i + 1
			if m.Order == want {
				continue
			}
			if _, err := tx.Exec(ctx, "UPDATE members SET position = $1 WHERE id = $2", want, m.ID); err != nil {
				return fmt.Errorf("failed to renumber member: %w", err)
			}
		}
		return nil
	})
}

// AdvanceTurn locks the group row, runs fn on the snapshot and commits the new turn.
func (s *PostgresStore) AdvanceTurn(ctx context.Context, groupID string, fn storage.AdvanceFunc) (*models.TurnRecord, error) {
	var record *models.TurnRecord
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		group, err := getGroup(ctx, tx, groupID, true)
		if err != nil {
			return err
		}
		members, err := listMembers(ctx, tx, groupID)
		if err != nil {
			return err
		}

		rec, err := fn(group, members)
		if err != nil {
			return err
		}
		if err := rec.Validate(); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			"UPDATE groups SET current_turn_index = $1 WHERE id = $2 AND current_turn_index = $3",
			rec.TurnNumber, groupID, rec.TurnNumber-1,
		)
		if err != nil {
			return fmt.Errorf("failed to update turn index: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.Conflict("turn index of group %s moved", groupID)
		}

		_, err = tx.Exec(ctx,
			"INSERT INTO turn_records ("+turnColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
			rec.ID, rec.GroupID, rec.AccountID, rec.MemberID, rec.TurnNumber, rec.Amount,
			rec.BeneficiaryName, rec.Date,
		)
		if isUniqueViolation(err) {
			return apperr.Conflict("turn %d of group %s already recorded", rec.TurnNumber, groupID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert turn record: %w", err)
		}

		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListTurns returns the turn history of a group.
func (s *PostgresStore) ListTurns(ctx context.Context, groupID string) ([]*models.TurnRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+turnColumns+" FROM turn_records WHERE group_id = $1 ORDER BY turn_number ASC", groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var records []*models.TurnRecord
	for rows.Next() {
		record, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn records: %w", err)
	}
	return records, nil
}
