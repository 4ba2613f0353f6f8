package service

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/middleware"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/report"
	"github.com/mmynk/tontine/internal/rotation"
	"github.com/mmynk/tontine/internal/storage"
)

// TontineService implements the TontineService RPC interface on the caller's
// own group.
type TontineService struct {
	store  storage.Store
	engine *rotation.Engine
	loc    *time.Location
}

// NewTontineService creates a new TontineService. Exported dates are
// rendered in loc.
func NewTontineService(store storage.Store, engine *rotation.Engine, loc *time.Location) *TontineService {
	if loc == nil {
		loc = time.UTC
	}
	return &TontineService{store: store, engine: engine, loc: loc}
}

// group loads the group owned by the caller.
func (s *TontineService) group(ctx context.Context) (*models.Group, error) {
	accountID := middleware.GetAccountID(ctx)
	if accountID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	group, err := s.store.GetGroupByAccount(ctx, accountID)
	if err != nil {
		slog.Error("Failed to load group", "account_id", accountID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	return group, nil
}

// GetGroup returns the caller's group.
func (s *TontineService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetGroupResponse{Group: toGroup(group)}), nil
}

// UpdateGroup writes the group settings.
func (s *TontineService) UpdateGroup(ctx context.Context, req *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UpdateGroup request received",
		"group_id", group.ID,
		"name", req.Msg.Name,
		"contribution_amount", req.Msg.ContributionAmount,
	)

	updated, err := s.engine.UpdateSettings(ctx, group.ID, rotation.Settings{
		Name:               req.Msg.Name,
		ContributionAmount: req.Msg.ContributionAmount,
		CycleStartDate:     req.Msg.CycleStartDate,
		NextTurnDate:       req.Msg.NextTurnDate,
	})
	if err != nil {
		slog.Error("UpdateGroup failed", "group_id", group.ID, "error", err)
		return nil, apperr.ToConnect(err)
	}

	slog.Info("Group updated", "group_id", updated.ID)
	return connect.NewResponse(&api.UpdateGroupResponse{Group: toGroup(updated)}), nil
}

// ListMembers returns the members ordered by rotation order.
func (s *TontineService) ListMembers(ctx context.Context, req *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, group.ID)
	if err != nil {
		slog.Error("ListMembers failed", "group_id", group.ID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	return connect.NewResponse(&api.ListMembersResponse{Members: toMembers(members)}), nil
}

// AddMember appends a member at the end of the rotation.
func (s *TontineService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	member, err := s.engine.AddMember(ctx, group, req.Msg.Name, req.Msg.Phone)
	if err != nil {
		slog.Error("AddMember failed", "group_id", group.ID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	slog.Info("Member added", "group_id", group.ID, "member_id", member.ID, "order", member.Order)
	return connect.NewResponse(&api.AddMemberResponse{Member: toMember(member)}), nil
}

// UpdateMember renames a member or changes its phone.
func (s *TontineService) UpdateMember(ctx context.Context, req *connect.Request[api.UpdateMemberRequest]) (*connect.Response[api.UpdateMemberResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.engine.UpdateMember(ctx, group, req.Msg.MemberID, req.Msg.Name, req.Msg.Phone); err != nil {
		slog.Error("UpdateMember failed", "group_id", group.ID, "member_id", req.Msg.MemberID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	return connect.NewResponse(&api.UpdateMemberResponse{}), nil
}

// DeleteMember removes a member and renumbers the remaining ones.
func (s *TontineService) DeleteMember(ctx context.Context, req *connect.Request[api.DeleteMemberRequest]) (*connect.Response[api.DeleteMemberResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.engine.DeleteMember(ctx, group, req.Msg.MemberID); err != nil {
		slog.Error("DeleteMember failed", "group_id", group.ID, "member_id", req.Msg.MemberID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	slog.Info("Member deleted", "group_id", group.ID, "member_id", req.Msg.MemberID)
	return connect.NewResponse(&api.DeleteMemberResponse{}), nil
}

// GetDashboard returns the home screen summary.
func (s *TontineService) GetDashboard(ctx context.Context, req *connect.Request[api.GetDashboardRequest]) (*connect.Response[api.GetDashboardResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.Dashboard(ctx, group.ID)
	if err != nil {
		slog.Error("GetDashboard failed", "group_id", group.ID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	return connect.NewResponse(&api.GetDashboardResponse{
		Group:            toGroup(d.Group),
		MembersCount:     int64(len(d.Members)),
		PayoutPerTurn:    d.PayoutPerTurn,
		NextBeneficiary:  toMember(d.NextBeneficiary),
		NextTurnNumber:   d.NextTurnNumber,
		IsTurnDay:        d.IsTurnDay,
		SecondsUntilTurn: d.SecondsUntilTurn,
	}), nil
}

// AdvanceTurn pays out the current beneficiary and moves the rotation on.
func (s *TontineService) AdvanceTurn(ctx context.Context, req *connect.Request[api.AdvanceTurnRequest]) (*connect.Response[api.AdvanceTurnResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	record, err := s.engine.AdvanceTurn(ctx, group.ID)
	if err != nil {
		slog.Error("AdvanceTurn failed", "group_id", group.ID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	slog.Info("Turn advanced",
		"group_id", group.ID,
		"turn_number", record.TurnNumber,
		"beneficiary", record.BeneficiaryName,
		"amount", record.Amount,
	)
	return connect.NewResponse(&api.AdvanceTurnResponse{Turn: toTurn(record)}), nil
}

// ListTurns returns the turn history with the total distributed.
func (s *TontineService) ListTurns(ctx context.Context, req *connect.Request[api.ListTurnsRequest]) (*connect.Response[api.ListTurnsResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	h, err := s.engine.History(ctx, group.ID)
	if err != nil {
		slog.Error("ListTurns failed", "group_id", group.ID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	return connect.NewResponse(&api.ListTurnsResponse{
		Turns:            toTurns(h.Turns),
		TotalDistributed: h.TotalDistributed,
	}), nil
}

// ExportHistory renders the turn history as an xlsx workbook.
func (s *TontineService) ExportHistory(ctx context.Context, req *connect.Request[api.ExportHistoryRequest]) (*connect.Response[api.ExportHistoryResponse], error) {
	group, err := s.group(ctx)
	if err != nil {
		return nil, err
	}
	h, err := s.engine.History(ctx, group.ID)
	if err != nil {
		slog.Error("ExportHistory failed", "group_id", group.ID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	data, err := report.History(group, h.Turns, s.loc)
	if err != nil {
		slog.Error("ExportHistory failed", "group_id", group.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	slog.Info("History exported", "group_id", group.ID, "turns", len(h.Turns), "bytes", len(data))
	return connect.NewResponse(&api.ExportHistoryResponse{
		FileName:    report.HistoryFileName(time.Now().In(s.loc)),
		ContentType: report.ContentType,
		Data:        data,
	}), nil
}
