// Package apiconnect wires the api messages to Connect handlers and clients.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tontine/internal/api"
)

const (
	AuthServiceName    = "tontine.v1.AuthService"
	TontineServiceName = "tontine.v1.TontineService"
	PaymentServiceName = "tontine.v1.PaymentService"
	AdminServiceName   = "tontine.v1.AdminService"
	EventServiceName   = "tontine.v1.EventService"
)

// Fully-qualified procedure names, used by interceptors to route checks.
const (
	AuthServiceRegisterProcedure          = "/tontine.v1.AuthService/Register"
	AuthServiceLoginProcedure             = "/tontine.v1.AuthService/Login"
	AuthServiceLogoutProcedure            = "/tontine.v1.AuthService/Logout"
	AuthServiceGetCurrentAccountProcedure = "/tontine.v1.AuthService/GetCurrentAccount"
	TontineServiceGetGroupProcedure       = "/tontine.v1.TontineService/GetGroup"
	TontineServiceUpdateGroupProcedure    = "/tontine.v1.TontineService/UpdateGroup"
	TontineServiceListMembersProcedure    = "/tontine.v1.TontineService/ListMembers"
	TontineServiceAddMemberProcedure      = "/tontine.v1.TontineService/AddMember"
	TontineServiceUpdateMemberProcedure   = "/tontine.v1.TontineService/UpdateMember"
	TontineServiceDeleteMemberProcedure   = "/tontine.v1.TontineService/DeleteMember"
	TontineServiceGetDashboardProcedure   = "/tontine.v1.TontineService/GetDashboard"
	TontineServiceAdvanceTurnProcedure    = "/tontine.v1.TontineService/AdvanceTurn"
	TontineServiceListTurnsProcedure      = "/tontine.v1.TontineService/ListTurns"
	TontineServiceExportHistoryProcedure  = "/tontine.v1.TontineService/ExportHistory"
	PaymentServiceSubmitPaymentProcedure  = "/tontine.v1.PaymentService/SubmitPayment"
	PaymentServiceListMyPaymentsProcedure = "/tontine.v1.PaymentService/ListMyPayments"
	PaymentServiceListMyAlertsProcedure   = "/tontine.v1.PaymentService/ListMyAlerts"
	PaymentServiceAckAlertProcedure       = "/tontine.v1.PaymentService/AckAlert"
	PaymentServiceGetAccessProcedure      = "/tontine.v1.PaymentService/GetAccess"
	AdminServiceListAccountsProcedure     = "/tontine.v1.AdminService/ListAccounts"
	AdminServiceGetAccountDetailProcedure = "/tontine.v1.AdminService/GetAccountDetail"
	AdminServiceListPaymentsProcedure     = "/tontine.v1.AdminService/ListPayments"
	AdminServiceGetStatsProcedure         = "/tontine.v1.AdminService/GetStats"
	AdminServiceSetStatusProcedure        = "/tontine.v1.AdminService/SetStatus"
	AdminServiceExtendProcedure           = "/tontine.v1.AdminService/Extend"
	AdminServiceValidatePaymentProcedure  = "/tontine.v1.AdminService/ValidatePayment"
	AdminServiceSendAlertProcedure        = "/tontine.v1.AdminService/SendAlert"
	AdminServiceDeleteAccountProcedure    = "/tontine.v1.AdminService/DeleteAccount"
	EventServiceSubscribeProcedure        = "/tontine.v1.EventService/Subscribe"
)

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(api.Codec)}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(api.Codec)}, opts...)
}

// route dispatches a service path prefix to its procedure handlers.
func route(name string, handlers map[string]http.Handler) (string, http.Handler) {
	return "/" + name + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// AuthServiceHandler serves account registration and session endpoints.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error)
	Login(context.Context, *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error)
	Logout(context.Context, *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error)
	GetCurrentAccount(context.Context, *connect.Request[api.GetCurrentAccountRequest]) (*connect.Response[api.GetCurrentAccountResponse], error)
}

// NewAuthServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return route(AuthServiceName, map[string]http.Handler{
		AuthServiceRegisterProcedure:          connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...),
		AuthServiceLoginProcedure:             connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...),
		AuthServiceLogoutProcedure:            connect.NewUnaryHandler(AuthServiceLogoutProcedure, svc.Logout, opts...),
		AuthServiceGetCurrentAccountProcedure: connect.NewUnaryHandler(AuthServiceGetCurrentAccountProcedure, svc.GetCurrentAccount, opts...),
	})
}

// AuthServiceClient is a client for the AuthServiceName service.
type AuthServiceClient interface {
	Register(context.Context, *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error)
	Login(context.Context, *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error)
	Logout(context.Context, *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error)
	GetCurrentAccount(context.Context, *connect.Request[api.GetCurrentAccountRequest]) (*connect.Response[api.GetCurrentAccountResponse], error)
}

// NewAuthServiceClient constructs a client for the AuthServiceName service. baseURL is
// the scheme and authority of the server, e.g. http://localhost:8080.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &authServiceClient{
		register:          connect.NewClient[api.RegisterRequest, api.RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:             connect.NewClient[api.LoginRequest, api.LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		logout:            connect.NewClient[api.LogoutRequest, api.LogoutResponse](httpClient, baseURL+AuthServiceLogoutProcedure, opts...),
		getCurrentAccount: connect.NewClient[api.GetCurrentAccountRequest, api.GetCurrentAccountResponse](httpClient, baseURL+AuthServiceGetCurrentAccountProcedure, opts...),
	}
}

type authServiceClient struct {
	register          *connect.Client[api.RegisterRequest, api.RegisterResponse]
	login             *connect.Client[api.LoginRequest, api.LoginResponse]
	logout            *connect.Client[api.LogoutRequest, api.LogoutResponse]
	getCurrentAccount *connect.Client[api.GetCurrentAccountRequest, api.GetCurrentAccountResponse]
}

func (c *authServiceClient) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *authServiceClient) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *authServiceClient) Logout(ctx context.Context, req *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error) {
	return c.logout.CallUnary(ctx, req)
}

func (c *authServiceClient) GetCurrentAccount(ctx context.Context, req *connect.Request[api.GetCurrentAccountRequest]) (*connect.Response[api.GetCurrentAccountResponse], error) {
	return c.getCurrentAccount.CallUnary(ctx, req)
}

// TontineServiceHandler serves the caller's group, members and turn rotation.
type TontineServiceHandler interface {
	GetGroup(context.Context, *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error)
	UpdateGroup(context.Context, *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error)
	ListMembers(context.Context, *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error)
	AddMember(context.Context, *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error)
	UpdateMember(context.Context, *connect.Request[api.UpdateMemberRequest]) (*connect.Response[api.UpdateMemberResponse], error)
	DeleteMember(context.Context, *connect.Request[api.DeleteMemberRequest]) (*connect.Response[api.DeleteMemberResponse], error)
	GetDashboard(context.Context, *connect.Request[api.GetDashboardRequest]) (*connect.Response[api.GetDashboardResponse], error)
	AdvanceTurn(context.Context, *connect.Request[api.AdvanceTurnRequest]) (*connect.Response[api.AdvanceTurnResponse], error)
	ListTurns(context.Context, *connect.Request[api.ListTurnsRequest]) (*connect.Response[api.ListTurnsResponse], error)
	ExportHistory(context.Context, *connect.Request[api.ExportHistoryRequest]) (*connect.Response[api.ExportHistoryResponse], error)
}

// NewTontineServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewTontineServiceHandler(svc TontineServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return route(TontineServiceName, map[string]http.Handler{
		TontineServiceGetGroupProcedure:      connect.NewUnaryHandler(TontineServiceGetGroupProcedure, svc.GetGroup, opts...),
		TontineServiceUpdateGroupProcedure:   connect.NewUnaryHandler(TontineServiceUpdateGroupProcedure, svc.UpdateGroup, opts...),
		TontineServiceListMembersProcedure:   connect.NewUnaryHandler(TontineServiceListMembersProcedure, svc.ListMembers, opts...),
		TontineServiceAddMemberProcedure:     connect.NewUnaryHandler(TontineServiceAddMemberProcedure, svc.AddMember, opts...),
		TontineServiceUpdateMemberProcedure:  connect.NewUnaryHandler(TontineServiceUpdateMemberProcedure, svc.UpdateMember, opts...),
		TontineServiceDeleteMemberProcedure:  connect.NewUnaryHandler(TontineServiceDeleteMemberProcedure, svc.DeleteMember, opts...),
		TontineServiceGetDashboardProcedure:  connect.NewUnaryHandler(TontineServiceGetDashboardProcedure, svc.GetDashboard, opts...),
		TontineServiceAdvanceTurnProcedure:   connect.NewUnaryHandler(TontineServiceAdvanceTurnProcedure, svc.AdvanceTurn, opts...),
		TontineServiceListTurnsProcedure:     connect.NewUnaryHandler(TontineServiceListTurnsProcedure, svc.ListTurns, opts...),
		TontineServiceExportHistoryProcedure: connect.NewUnaryHandler(TontineServiceExportHistoryProcedure, svc.ExportHistory, opts...),
	})
}

// TontineServiceClient is a client for the TontineServiceName service.
type TontineServiceClient interface {
	GetGroup(context.Context, *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error)
	UpdateGroup(context.Context, *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error)
	ListMembers(context.Context, *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error)
	AddMember(context.Context, *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error)
	UpdateMember(context.Context, *connect.Request[api.UpdateMemberRequest]) (*connect.Response[api.UpdateMemberResponse], error)
	DeleteMember(context.Context, *connect.Request[api.DeleteMemberRequest]) (*connect.Response[api.DeleteMemberResponse], error)
	GetDashboard(context.Context, *connect.Request[api.GetDashboardRequest]) (*connect.Response[api.GetDashboardResponse], error)
	AdvanceTurn(context.Context, *connect.Request[api.AdvanceTurnRequest]) (*connect.Response[api.AdvanceTurnResponse], error)
	ListTurns(context.Context, *connect.Request[api.ListTurnsRequest]) (*connect.Response[api.ListTurnsResponse], error)
	ExportHistory(context.Context, *connect.Request[api.ExportHistoryRequest]) (*connect.Response[api.ExportHistoryResponse], error)
}

// NewTontineServiceClient constructs a client for the TontineServiceName service. baseURL is
// the scheme and authority of the server, e.g. http://localhost:8080.
func NewTontineServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) TontineServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &tontineServiceClient{
		getGroup:      connect.NewClient[api.GetGroupRequest, api.GetGroupResponse](httpClient, baseURL+TontineServiceGetGroupProcedure, opts...),
		updateGroup:   connect.NewClient[api.UpdateGroupRequest, api.UpdateGroupResponse](httpClient, baseURL+TontineServiceUpdateGroupProcedure, opts...),
		listMembers:   connect.NewClient[api.ListMembersRequest, api.ListMembersResponse](httpClient, baseURL+TontineServiceListMembersProcedure, opts...),
		addMember:     connect.NewClient[api.AddMemberRequest, api.AddMemberResponse](httpClient, baseURL+TontineServiceAddMemberProcedure, opts...),
		updateMember:  connect.NewClient[api.UpdateMemberRequest, api.UpdateMemberResponse](httpClient, baseURL+TontineServiceUpdateMemberProcedure, opts...),
		deleteMember:  connect.NewClient[api.DeleteMemberRequest, api.DeleteMemberResponse](httpClient, baseURL+TontineServiceDeleteMemberProcedure, opts...),
		getDashboard:  connect.NewClient[api.GetDashboardRequest, api.GetDashboardResponse](httpClient, baseURL+TontineServiceGetDashboardProcedure, opts...),
		advanceTurn:   connect.NewClient[api.AdvanceTurnRequest, api.AdvanceTurnResponse](httpClient, baseURL+TontineServiceAdvanceTurnProcedure, opts...),
		listTurns:     connect.NewClient[api.ListTurnsRequest, api.ListTurnsResponse](httpClient, baseURL+TontineServiceListTurnsProcedure, opts...),
		exportHistory: connect.NewClient[api.ExportHistoryRequest, api.ExportHistoryResponse](httpClient, baseURL+TontineServiceExportHistoryProcedure, opts...),
	}
}

type tontineServiceClient struct {
	getGroup      *connect.Client[api.GetGroupRequest, api.GetGroupResponse]
	updateGroup   *connect.Client[api.UpdateGroupRequest, api.UpdateGroupResponse]
	listMembers   *connect.Client[api.ListMembersRequest, api.ListMembersResponse]
	addMember     *connect.Client[api.AddMemberRequest, api.AddMemberResponse]
	updateMember  *connect.Client[api.UpdateMemberRequest, api.UpdateMemberResponse]
	deleteMember  *connect.Client[api.DeleteMemberRequest, api.DeleteMemberResponse]
	getDashboard  *connect.Client[api.GetDashboardRequest, api.GetDashboardResponse]
	advanceTurn   *connect.Client[api.AdvanceTurnRequest, api.AdvanceTurnResponse]
	listTurns     *connect.Client[api.ListTurnsRequest, api.ListTurnsResponse]
	exportHistory *connect.Client[api.ExportHistoryRequest, api.ExportHistoryResponse]
}

func (c *tontineServiceClient) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *tontineServiceClient) UpdateGroup(ctx context.Context, req *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error) {
	return c.updateGroup.CallUnary(ctx, req)
}

func (c *tontineServiceClient) ListMembers(ctx context.Context, req *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error) {
	return c.listMembers.CallUnary(ctx, req)
}

func (c *tontineServiceClient) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	return c.addMember.CallUnary(ctx, req)
}

func (c *tontineServiceClient) UpdateMember(ctx context.Context, req *connect.Request[api.UpdateMemberRequest]) (*connect.Response[api.UpdateMemberResponse], error) {
	return c.updateMember.CallUnary(ctx, req)
}

func (c *tontineServiceClient) DeleteMember(ctx context.Context, req *connect.Request[api.DeleteMemberRequest]) (*connect.Response[api.DeleteMemberResponse], error) {
	return c.deleteMember.CallUnary(ctx, req)
}

func (c *tontineServiceClient) GetDashboard(ctx context.Context, req *connect.Request[api.GetDashboardRequest]) (*connect.Response[api.GetDashboardResponse], error) {
	return c.getDashboard.CallUnary(ctx, req)
}

func (c *tontineServiceClient) AdvanceTurn(ctx context.Context, req *connect.Request[api.AdvanceTurnRequest]) (*connect.Response[api.AdvanceTurnResponse], error) {
	return c.advanceTurn.CallUnary(ctx, req)
}

func (c *tontineServiceClient) ListTurns(ctx context.Context, req *connect.Request[api.ListTurnsRequest]) (*connect.Response[api.ListTurnsResponse], error) {
	return c.listTurns.CallUnary(ctx, req)
}

func (c *tontineServiceClient) ExportHistory(ctx context.Context, req *connect.Request[api.ExportHistoryRequest]) (*connect.Response[api.ExportHistoryResponse], error) {
	return c.exportHistory.CallUnary(ctx, req)
}

// PaymentServiceHandler serves the caller's payments, alerts and access decision.
type PaymentServiceHandler interface {
	SubmitPayment(context.Context, *connect.Request[api.SubmitPaymentRequest]) (*connect.Response[api.SubmitPaymentResponse], error)
	ListMyPayments(context.Context, *connect.Request[api.ListMyPaymentsRequest]) (*connect.Response[api.ListMyPaymentsResponse], error)
	ListMyAlerts(context.Context, *connect.Request[api.ListMyAlertsRequest]) (*connect.Response[api.ListMyAlertsResponse], error)
	AckAlert(context.Context, *connect.Request[api.AckAlertRequest]) (*connect.Response[api.AckAlertResponse], error)
	GetAccess(context.Context, *connect.Request[api.GetAccessRequest]) (*connect.Response[api.GetAccessResponse], error)
}

// NewPaymentServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewPaymentServiceHandler(svc PaymentServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return route(PaymentServiceName, map[string]http.Handler{
		PaymentServiceSubmitPaymentProcedure:  connect.NewUnaryHandler(PaymentServiceSubmitPaymentProcedure, svc.SubmitPayment, opts...),
		PaymentServiceListMyPaymentsProcedure: connect.NewUnaryHandler(PaymentServiceListMyPaymentsProcedure, svc.ListMyPayments, opts...),
		PaymentServiceListMyAlertsProcedure:   connect.NewUnaryHandler(PaymentServiceListMyAlertsProcedure, svc.ListMyAlerts, opts...),
		PaymentServiceAckAlertProcedure:       connect.NewUnaryHandler(PaymentServiceAckAlertProcedure, svc.AckAlert, opts...),
		PaymentServiceGetAccessProcedure:      connect.NewUnaryHandler(PaymentServiceGetAccessProcedure, svc.GetAccess, opts...),
	})
}

// PaymentServiceClient is a client for the PaymentServiceName service.
type PaymentServiceClient interface {
	SubmitPayment(context.Context, *connect.Request[api.SubmitPaymentRequest]) (*connect.Response[api.SubmitPaymentResponse], error)
	ListMyPayments(context.Context, *connect.Request[api.ListMyPaymentsRequest]) (*connect.Response[api.ListMyPaymentsResponse], error)
	ListMyAlerts(context.Context, *connect.Request[api.ListMyAlertsRequest]) (*connect.Response[api.ListMyAlertsResponse], error)
	AckAlert(context.Context, *connect.Request[api.AckAlertRequest]) (*connect.Response[api.AckAlertResponse], error)
	GetAccess(context.Context, *connect.Request[api.GetAccessRequest]) (*connect.Response[api.GetAccessResponse], error)
}

// NewPaymentServiceClient constructs a client for the PaymentServiceName service. baseURL is
// the scheme and authority of the server, e.g. http://localhost:8080.
func NewPaymentServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PaymentServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &paymentServiceClient{
		submitPayment:  connect.NewClient[api.SubmitPaymentRequest, api.SubmitPaymentResponse](httpClient, baseURL+PaymentServiceSubmitPaymentProcedure, opts...),
		listMyPayments: connect.NewClient[api.ListMyPaymentsRequest, api.ListMyPaymentsResponse](httpClient, baseURL+PaymentServiceListMyPaymentsProcedure, opts...),
		listMyAlerts:   connect.NewClient[api.ListMyAlertsRequest, api.ListMyAlertsResponse](httpClient, baseURL+PaymentServiceListMyAlertsProcedure, opts...),
		ackAlert:       connect.NewClient[api.AckAlertRequest, api.AckAlertResponse](httpClient, baseURL+PaymentServiceAckAlertProcedure, opts...),
		getAccess:      connect.NewClient[api.GetAccessRequest, api.GetAccessResponse](httpClient, baseURL+PaymentServiceGetAccessProcedure, opts...),
	}
}

type paymentServiceClient struct {
	submitPayment  *connect.Client[api.SubmitPaymentRequest, api.SubmitPaymentResponse]
	listMyPayments *connect.Client[api.ListMyPaymentsRequest, api.ListMyPaymentsResponse]
	listMyAlerts   *connect.Client[api.ListMyAlertsRequest, api.ListMyAlertsResponse]
	ackAlert       *connect.Client[api.AckAlertRequest, api.AckAlertResponse]
	getAccess      *connect.Client[api.GetAccessRequest, api.GetAccessResponse]
}

func (c *paymentServiceClient) SubmitPayment(ctx context.Context, req *connect.Request[api.SubmitPaymentRequest]) (*connect.Response[api.SubmitPaymentResponse], error) {
	return c.submitPayment.CallUnary(ctx, req)
}

func (c *paymentServiceClient) ListMyPayments(ctx context.Context, req *connect.Request[api.ListMyPaymentsRequest]) (*connect.Response[api.ListMyPaymentsResponse], error) {
	return c.listMyPayments.CallUnary(ctx, req)
}

func (c *paymentServiceClient) ListMyAlerts(ctx context.Context, req *connect.Request[api.ListMyAlertsRequest]) (*connect.Response[api.ListMyAlertsResponse], error) {
	return c.listMyAlerts.CallUnary(ctx, req)
}

func (c *paymentServiceClient) AckAlert(ctx context.Context, req *connect.Request[api.AckAlertRequest]) (*connect.Response[api.AckAlertResponse], error) {
	return c.ackAlert.CallUnary(ctx, req)
}

func (c *paymentServiceClient) GetAccess(ctx context.Context, req *connect.Request[api.GetAccessRequest]) (*connect.Response[api.GetAccessResponse], error) {
	return c.getAccess.CallUnary(ctx, req)
}

// AdminServiceHandler serves the super_admin console.
type AdminServiceHandler interface {
	ListAccounts(context.Context, *connect.Request[api.ListAccountsRequest]) (*connect.Response[api.ListAccountsResponse], error)
	GetAccountDetail(context.Context, *connect.Request[api.GetAccountDetailRequest]) (*connect.Response[api.GetAccountDetailResponse], error)
	ListPayments(context.Context, *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error)
	GetStats(context.Context, *connect.Request[api.GetStatsRequest]) (*connect.Response[api.GetStatsResponse], error)
	SetStatus(context.Context, *connect.Request[api.SetStatusRequest]) (*connect.Response[api.SetStatusResponse], error)
	Extend(context.Context, *connect.Request[api.ExtendRequest]) (*connect.Response[api.ExtendResponse], error)
	ValidatePayment(context.Context, *connect.Request[api.ValidatePaymentRequest]) (*connect.Response[api.ValidatePaymentResponse], error)
	SendAlert(context.Context, *connect.Request[api.SendAlertRequest]) (*connect.Response[api.SendAlertResponse], error)
	DeleteAccount(context.Context, *connect.Request[api.DeleteAccountRequest]) (*connect.Response[api.DeleteAccountResponse], error)
}

// NewAdminServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewAdminServiceHandler(svc AdminServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return route(AdminServiceName, map[string]http.Handler{
		AdminServiceListAccountsProcedure:     connect.NewUnaryHandler(AdminServiceListAccountsProcedure, svc.ListAccounts, opts...),
		AdminServiceGetAccountDetailProcedure: connect.NewUnaryHandler(AdminServiceGetAccountDetailProcedure, svc.GetAccountDetail, opts...),
		AdminServiceListPaymentsProcedure:     connect.NewUnaryHandler(AdminServiceListPaymentsProcedure, svc.ListPayments, opts...),
		AdminServiceGetStatsProcedure:         connect.NewUnaryHandler(AdminServiceGetStatsProcedure, svc.GetStats, opts...),
		AdminServiceSetStatusProcedure:        connect.NewUnaryHandler(AdminServiceSetStatusProcedure, svc.SetStatus, opts...),
		AdminServiceExtendProcedure:           connect.NewUnaryHandler(AdminServiceExtendProcedure, svc.Extend, opts...),
		AdminServiceValidatePaymentProcedure:  connect.NewUnaryHandler(AdminServiceValidatePaymentProcedure, svc.ValidatePayment, opts...),
		AdminServiceSendAlertProcedure:        connect.NewUnaryHandler(AdminServiceSendAlertProcedure, svc.SendAlert, opts...),
		AdminServiceDeleteAccountProcedure:    connect.NewUnaryHandler(AdminServiceDeleteAccountProcedure, svc.DeleteAccount, opts...),
	})
}

// AdminServiceClient is a client for the AdminServiceName service.
type AdminServiceClient interface {
	ListAccounts(context.Context, *connect.Request[api.ListAccountsRequest]) (*connect.Response[api.ListAccountsResponse], error)
	GetAccountDetail(context.Context, *connect.Request[api.GetAccountDetailRequest]) (*connect.Response[api.GetAccountDetailResponse], error)
	ListPayments(context.Context, *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error)
	GetStats(context.Context, *connect.Request[api.GetStatsRequest]) (*connect.Response[api.GetStatsResponse], error)
	SetStatus(context.Context, *connect.Request[api.SetStatusRequest]) (*connect.Response[api.SetStatusResponse], error)
	Extend(context.Context, *connect.Request[api.ExtendRequest]) (*connect.Response[api.ExtendResponse], error)
	ValidatePayment(context.Context, *connect.Request[api.ValidatePaymentRequest]) (*connect.Response[api.ValidatePaymentResponse], error)
	SendAlert(context.Context, *connect.Request[api.SendAlertRequest]) (*connect.Response[api.SendAlertResponse], error)
	DeleteAccount(context.Context, *connect.Request[api.DeleteAccountRequest]) (*connect.Response[api.DeleteAccountResponse], error)
}

// NewAdminServiceClient constructs a client for the AdminServiceName service. baseURL is
// the scheme and authority of the server, e.g. http://localhost:8080.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AdminServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &adminServiceClient{
		listAccounts:     connect.NewClient[api.ListAccountsRequest, api.ListAccountsResponse](httpClient, baseURL+AdminServiceListAccountsProcedure, opts...),
		getAccountDetail: connect.NewClient[api.GetAccountDetailRequest, api.GetAccountDetailResponse](httpClient, baseURL+AdminServiceGetAccountDetailProcedure, opts...),
		listPayments:     connect.NewClient[api.ListPaymentsRequest, api.ListPaymentsResponse](httpClient, baseURL+AdminServiceListPaymentsProcedure, opts...),
		getStats:         connect.NewClient[api.GetStatsRequest, api.GetStatsResponse](httpClient, baseURL+AdminServiceGetStatsProcedure, opts...),
		setStatus:        connect.NewClient[api.SetStatusRequest, api.SetStatusResponse](httpClient, baseURL+AdminServiceSetStatusProcedure, opts...),
		extend:           connect.NewClient[api.ExtendRequest, api.ExtendResponse](httpClient, baseURL+AdminServiceExtendProcedure, opts...),
		validatePayment:  connect.NewClient[api.ValidatePaymentRequest, api.ValidatePaymentResponse](httpClient, baseURL+AdminServiceValidatePaymentProcedure, opts...),
		sendAlert:        connect.NewClient[api.SendAlertRequest, api.SendAlertResponse](httpClient, baseURL+AdminServiceSendAlertProcedure, opts...),
		deleteAccount:    connect.NewClient[api.DeleteAccountRequest, api.DeleteAccountResponse](httpClient, baseURL+AdminServiceDeleteAccountProcedure, opts...),
	}
}

type adminServiceClient struct {
	listAccounts     *connect.Client[api.ListAccountsRequest, api.ListAccountsResponse]
	getAccountDetail *connect.Client[api.GetAccountDetailRequest, api.GetAccountDetailResponse]
	listPayments     *connect.Client[api.ListPaymentsRequest, api.ListPaymentsResponse]
	getStats         *connect.Client[api.GetStatsRequest, api.GetStatsResponse]
	setStatus        *connect.Client[api.SetStatusRequest, api.SetStatusResponse]
	extend           *connect.Client[api.ExtendRequest, api.ExtendResponse]
	validatePayment  *connect.Client[api.ValidatePaymentRequest, api.ValidatePaymentResponse]
	sendAlert        *connect.Client[api.SendAlertRequest, api.SendAlertResponse]
	deleteAccount    *connect.Client[api.DeleteAccountRequest, api.DeleteAccountResponse]
}

func (c *adminServiceClient) ListAccounts(ctx context.Context, req *connect.Request[api.ListAccountsRequest]) (*connect.Response[api.ListAccountsResponse], error) {
	return c.listAccounts.CallUnary(ctx, req)
}

func (c *adminServiceClient) GetAccountDetail(ctx context.Context, req *connect.Request[api.GetAccountDetailRequest]) (*connect.Response[api.GetAccountDetailResponse], error) {
	return c.getAccountDetail.CallUnary(ctx, req)
}

func (c *adminServiceClient) ListPayments(ctx context.Context, req *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error) {
	return c.listPayments.CallUnary(ctx, req)
}

func (c *adminServiceClient) GetStats(ctx context.Context, req *connect.Request[api.GetStatsRequest]) (*connect.Response[api.GetStatsResponse], error) {
	return c.getStats.CallUnary(ctx, req)
}

func (c *adminServiceClient) SetStatus(ctx context.Context, req *connect.Request[api.SetStatusRequest]) (*connect.Response[api.SetStatusResponse], error) {
	return c.setStatus.CallUnary(ctx, req)
}

func (c *adminServiceClient) Extend(ctx context.Context, req *connect.Request[api.ExtendRequest]) (*connect.Response[api.ExtendResponse], error) {
	return c.extend.CallUnary(ctx, req)
}

func (c *adminServiceClient) ValidatePayment(ctx context.Context, req *connect.Request[api.ValidatePaymentRequest]) (*connect.Response[api.ValidatePaymentResponse], error) {
	return c.validatePayment.CallUnary(ctx, req)
}

func (c *adminServiceClient) SendAlert(ctx context.Context, req *connect.Request[api.SendAlertRequest]) (*connect.Response[api.SendAlertResponse], error) {
	return c.sendAlert.CallUnary(ctx, req)
}

func (c *adminServiceClient) DeleteAccount(ctx context.Context, req *connect.Request[api.DeleteAccountRequest]) (*connect.Response[api.DeleteAccountResponse], error) {
	return c.deleteAccount.CallUnary(ctx, req)
}

// EventServiceHandler streams realtime events.
type EventServiceHandler interface {
	Subscribe(context.Context, *connect.Request[api.SubscribeRequest], *connect.ServerStream[api.Event]) error
}

// NewEventServiceHandler builds an HTTP handler from the service implementation.
func NewEventServiceHandler(svc EventServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return route(EventServiceName, map[string]http.Handler{
		EventServiceSubscribeProcedure: connect.NewServerStreamHandler(EventServiceSubscribeProcedure, svc.Subscribe, opts...),
	})
}

// EventServiceClient is a client for the EventServiceName service.
type EventServiceClient interface {
	Subscribe(context.Context, *connect.Request[api.SubscribeRequest]) (*connect.ServerStreamForClient[api.Event], error)
}

// NewEventServiceClient constructs a client for the EventServiceName service.
func NewEventServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) EventServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &eventServiceClient{
		subscribe: connect.NewClient[api.SubscribeRequest, api.Event](httpClient, baseURL+EventServiceSubscribeProcedure, clientOptions(opts)...),
	}
}

type eventServiceClient struct {
	subscribe *connect.Client[api.SubscribeRequest, api.Event]
}

func (c *eventServiceClient) Subscribe(ctx context.Context, req *connect.Request[api.SubscribeRequest]) (*connect.ServerStreamForClient[api.Event], error) {
	return c.subscribe.CallServerStream(ctx, req)
}
