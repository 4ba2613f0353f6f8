package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

const groupColumns = "id, account_id, name, contribution_amount, current_turn_index, cycle_start_date, next_turn_date, created_at"

const memberColumns = "id, group_id, account_id, name, phone, position, created_at"

const turnColumns = "id, group_id, account_id, member_id, turn_number, amount, beneficiary_name, date"

func insertGroup(ctx context.Context, q querier, group *models.Group) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO groups ("+groupColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		group.ID, group.AccountID, group.Name, group.ContributionAmount, group.CurrentTurnIndex,
		nullUnix(group.CycleStartDate), nullUnix(group.NextTurnDate), unix(group.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

func scanGroup(row scanner) (*models.Group, error) {
	group := &models.Group{}
	var cycleStart, nextTurn sql.NullInt64
	var createdAt int64
	if err := row.Scan(&group.ID, &group.AccountID, &group.Name, &group.ContributionAmount,
		&group.CurrentTurnIndex, &cycleStart, &nextTurn, &createdAt); err != nil {
		return nil, err
	}
	group.CycleStartDate = timePtr(cycleStart)
	group.NextTurnDate = timePtr(nextTurn)
	group.CreatedAt = fromUnix(createdAt)
	if err := group.Validate(); err != nil {
		return nil, fmt.Errorf("malformed group row %s: %w", group.ID, err)
	}
	return group, nil
}

func scanMember(row scanner) (*models.Member, error) {
	member := &models.Member{}
	var phone sql.NullString
	var createdAt int64
	if err := row.Scan(&member.ID, &member.GroupID, &member.AccountID, &member.Name,
		&phone, &member.Order, &createdAt); err != nil {
		return nil, err
	}
	if phone.Valid {
		member.Phone = phone.String
	}
	member.CreatedAt = fromUnix(createdAt)
	if err := member.Validate(); err != nil {
		return nil, fmt.Errorf("malformed member row %s: %w", member.ID, err)
	}
	return member, nil
}

func scanTurn(row scanner) (*models.TurnRecord, error) {
	record := &models.TurnRecord{}
	var date int64
	if err := row.Scan(&record.ID, &record.GroupID, &record.AccountID, &record.MemberID,
		&record.TurnNumber, &record.Amount, &record.BeneficiaryName, &date); err != nil {
		return nil, err
	}
	record.Date = fromUnix(date)
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("malformed turn record row %s: %w", record.ID, err)
	}
	return record, nil
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return getGroup(ctx, s.db, groupID)
}

func getGroup(ctx context.Context, q querier, groupID string) (*models.Group, error) {
	group, err := scanGroup(q.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id = ?", groupID,
	))
	if err != nil {
		return nil, notFound(err, "group", groupID)
	}
	return group, nil
}

// GetGroupByAccount retrieves the group owned by an account.
func (s *SQLiteStore) GetGroupByAccount(ctx context.Context, accountID string) (*models.Group, error) {
	group, err := scanGroup(s.db.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE account_id = ? ORDER BY created_at LIMIT 1", accountID,
	))
	if err != nil {
		return nil, notFound(err, "group for account", accountID)
	}
	return group, nil
}

// UpdateGroupSettings updates name, contribution amount and dates of a group.
func (s *SQLiteStore) UpdateGroupSettings(ctx context.Context, group *models.Group) error {
	if err := group.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE groups SET name = ?, contribution_amount = ?, cycle_start_date = ?, next_turn_date = ? WHERE id = ?",
		group.Name, group.ContributionAmount, nullUnix(group.CycleStartDate), nullUnix(group.NextTurnDate), group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("group", group.ID)
	}
	return nil
}

// ListMembers returns the members of a group in rotation order.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID string) ([]*models.Member, error) {
	return listMembers(ctx, s.db, groupID)
}

func listMembers(ctx context.Context, q querier, groupID string) ([]*models.Member, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE group_id = ? ORDER BY position ASC", groupID,
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

// AddMember appends a member after the current last position.
func (s *SQLiteStore) AddMember(ctx context.Context, member *models.Member) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getGroup(ctx, tx, member.GroupID); err != nil {
			return err
		}

		var maxPosition int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position), 0) FROM members WHERE group_id = ?", member.GroupID,
		).Scan(&maxPosition); err != nil {
			return fmt.Errorf("failed to read member positions: %w", err)
		}
		member.Order = maxPosition + 1
		if err := member.Validate(); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO members ("+memberColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			member.ID, member.GroupID, member.AccountID, member.Name, nullString(member.Phone),
			member.Order, unix(member.CreatedAt),
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
func (s *SQLiteStore) UpdateMember(ctx context.Context, member *models.Member) error {
	if member.Name == "" {
		return apperr.Validation("member name is required")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE members SET name = ?, phone = ? WHERE id = ? AND group_id = ?",
		member.Name, nullString(member.Phone), member.ID, member.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("member", member.ID)
	}
	return nil
}

// DeleteMember removes a member and closes the gap in positions.
func (s *SQLiteStore) DeleteMember(ctx context.Context, groupID, memberID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM members WHERE id = ? AND group_id = ?", memberID, groupID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("member", memberID)
		}

		remaining, err := listMembers(ctx, tx, groupID)
		if err != nil {
			return err
		}
		// Ascending order keeps UNIQUE(group_id, position) satisfied after each row.
		for i, m := range remaining {
			want := i + 1
			if m.Order == want {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE members SET position = ? WHERE id = ?", want, m.ID,
			); err != nil {
				return fmt.Errorf("failed to renumber member: %w", err)
			}
		}
		return nil
	})
}

// AdvanceTurn runs fn on a consistent snapshot and commits the new turn.
func (s *SQLiteStore) AdvanceTurn(ctx context.Context, groupID string, fn storage.AdvanceFunc) (*models.TurnRecord, error) {
	var record *models.TurnRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		group, err := getGroup(ctx, tx, groupID)
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

		res, err := tx.ExecContext(ctx,
			"UPDATE groups SET current_turn_index = ? WHERE id = ? AND current_turn_index = ?",
			rec.TurnNumber, groupID, rec.TurnNumber-1,
		)
		if err != nil {
			return fmt.Errorf("failed to update turn index: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.Conflict("turn index of group %s moved", groupID)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO turn_records ("+turnColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			rec.ID, rec.GroupID, rec.AccountID, rec.MemberID, rec.TurnNumber, rec.Amount,
			rec.BeneficiaryName, unix(rec.Date),
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
func (s *SQLiteStore) ListTurns(ctx context.Context, groupID string) ([]*models.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+turnColumns+" FROM turn_records WHERE group_id = ? ORDER BY turn_number ASC", groupID,
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
