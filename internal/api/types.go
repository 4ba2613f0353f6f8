package api

import "time"

type Account struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type Subscription struct {
	AccountID string     `json:"accountId"`
	Status    string     `json:"status"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Expired   bool       `json:"expired"`
}

// Access is the gate decision with the screens it allows, default first.
type Access struct {
	Outcome       string   `json:"outcome"`
	Screens       []string `json:"screens"`
	DefaultScreen string   `json:"defaultScreen"`
}

type Group struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	ContributionAmount int64      `json:"contributionAmount"`
	CurrentTurnIndex   int64      `json:"currentTurnIndex"`
	CycleStartDate     *time.Time `json:"cycleStartDate,omitempty"`
	NextTurnDate       *time.Time `json:"nextTurnDate,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Order int64  `json:"order"`
}

type Turn struct {
	ID              string    `json:"id"`
	MemberID        string    `json:"memberId"`
	BeneficiaryName string    `json:"beneficiaryName"`
	TurnNumber      int64     `json:"turnNumber"`
	Amount          int64     `json:"amount"`
	Date            time.Time `json:"date"`
}

type Payment struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	Amount      int64      `json:"amount"`
	Reference   string     `json:"reference"`
	SubmittedAt time.Time  `json:"submittedAt"`
	Validated   bool       `json:"validated"`
	Pending     bool       `json:"pending"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
}

type Alert struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Seen    bool      `json:"seen"`
	SentAt  time.Time `json:"sentAt"`
}

// Event is one realtime change notification.
type Event struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	AccountID    string        `json:"accountId"`
	At           time.Time     `json:"at"`
	Subscription *Subscription `json:"subscription,omitempty"`
	PaymentID    string        `json:"paymentId,omitempty"`
	AlertID      string        `json:"alertId,omitempty"`
	Message      string        `json:"message,omitempty"`
	GroupID      string        `json:"groupId,omitempty"`
	TurnNumber   int64         `json:"turnNumber,omitempty"`
	Invalidates  []string      `json:"invalidates"`
}

// AuthService

type RegisterRequest struct {
	Phone string `json:"phone"`
	Pin   string `json:"pin"`
}

type RegisterResponse struct {
	Account *Account `json:"account"`
	Token   string   `json:"token"`
}

type LoginRequest struct {
	Phone string `json:"phone"`
	Pin   string `json:"pin"`
}

type LoginResponse struct {
	Account *Account `json:"account"`
	Token   string   `json:"token"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetCurrentAccountRequest struct{}

type GetCurrentAccountResponse struct {
	Account      *Account      `json:"account"`
	Subscription *Subscription `json:"subscription"`
	Access       *Access       `json:"access"`
}

// TontineService

type GetGroupRequest struct{}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type UpdateGroupRequest struct {
	Name               string     `json:"name"`
	ContributionAmount int64      `json:"contributionAmount"`
	CycleStartDate     *time.Time `json:"cycleStartDate,omitempty"`
	NextTurnDate       *time.Time `json:"nextTurnDate,omitempty"`
}

type UpdateGroupResponse struct {
	Group *Group `json:"group"`
}

type ListMembersRequest struct{}

type ListMembersResponse struct {
	Members []*Member `json:"members"`
}

type AddMemberRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type AddMemberResponse struct {
	Member *Member `json:"member"`
}

type UpdateMemberRequest struct {
	MemberID string `json:"memberId"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

type UpdateMemberResponse struct{}

type DeleteMemberRequest struct {
	MemberID string `json:"memberId"`
}

type DeleteMemberResponse struct{}

type GetDashboardRequest struct{}

type GetDashboardResponse struct {
	Group            *Group  `json:"group"`
	MembersCount     int64   `json:"membersCount"`
	PayoutPerTurn    int64   `json:"payoutPerTurn"`
	NextBeneficiary  *Member `json:"nextBeneficiary,omitempty"`
	NextTurnNumber   int64   `json:"nextTurnNumber"`
	IsTurnDay        bool    `json:"isTurnDay"`
	SecondsUntilTurn int64   `json:"secondsUntilTurn"`
}

type AdvanceTurnRequest struct{}

type AdvanceTurnResponse struct {
	Turn *Turn `json:"turn"`
}

type ListTurnsRequest struct{}

type ListTurnsResponse struct {
	Turns            []*Turn `json:"turns"`
	TotalDistributed int64   `json:"totalDistributed"`
}

type ExportHistoryRequest struct{}

type ExportHistoryResponse struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// PaymentService

type SubmitPaymentRequest struct {
	Reference string `json:"reference"`
}

type SubmitPaymentResponse struct {
	Payment *Payment `json:"payment"`
}

type ListMyPaymentsRequest struct{}

type ListMyPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
	Price    int64      `json:"price"`
}

type ListMyAlertsRequest struct{}

type ListMyAlertsResponse struct {
	Alerts []*Alert `json:"alerts"`
}

type AckAlertRequest struct {
	AlertID string `json:"alertId"`
}

type AckAlertResponse struct{}

type GetAccessRequest struct{}

type GetAccessResponse struct {
	Subscription *Subscription `json:"subscription"`
	Access       *Access       `json:"access"`
}

// AdminService

type AccountSummary struct {
	Account      *Account      `json:"account"`
	Subscription *Subscription `json:"subscription"`
}

type ListAccountsRequest struct{}

type ListAccountsResponse struct {
	Accounts []*AccountSummary `json:"accounts"`
}

type GetAccountDetailRequest struct {
	AccountID string `json:"accountId"`
}

type GetAccountDetailResponse struct {
	Account      *Account      `json:"account"`
	Subscription *Subscription `json:"subscription"`
	Group        *Group        `json:"group,omitempty"`
	Members      []*Member     `json:"members"`
	Turns        []*Turn       `json:"turns"`
	Payments     []*Payment    `json:"payments"`
}

type ListPaymentsRequest struct {
	PendingOnly bool `json:"pendingOnly"`
}

type ListPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
}

type GetStatsRequest struct{}

type GetStatsResponse struct {
	Accounts        int64 `json:"accounts"`
	Active          int64 `json:"active"`
	Blocked         int64 `json:"blocked"`
	Expired         int64 `json:"expired"`
	PendingPayments int64 `json:"pendingPayments"`
	MonthlyRevenue  int64 `json:"monthlyRevenue"`
}

type SetStatusRequest struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

type SetStatusResponse struct {
	Subscription *Subscription `json:"subscription"`
}

type ExtendRequest struct {
	AccountID string `json:"accountId"`
	Days      int    `json:"days"`
}

type ExtendResponse struct {
	Subscription *Subscription `json:"subscription"`
}

type ValidatePaymentRequest struct {
	PaymentID string `json:"paymentId"`
	// AccountID, when set, must own the payment.
	AccountID string `json:"accountId,omitempty"`
}

type ValidatePaymentResponse struct {
	Payment      *Payment      `json:"payment"`
	Subscription *Subscription `json:"subscription"`
	Changed      bool          `json:"changed"`
}

type SendAlertRequest struct {
	AccountID string `json:"accountId"`
	Message   string `json:"message,omitempty"`
}

type SendAlertResponse struct {
	Alert *Alert `json:"alert"`
}

type DeleteAccountRequest struct {
	AccountID string `json:"accountId"`
}

type DeleteAccountResponse struct{}

// EventService

type SubscribeRequest struct {
	// All requests the administrator feed of every account.
	All bool `json:"all,omitempty"`
}
