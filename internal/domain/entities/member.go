package entities

// MemberRecord is the wallet a user proved when they were admitted to a chat.
type MemberRecord struct {
	ChatID        int64  `json:"chatId"`
	UserID        int64  `json:"userId"`
	WalletAddress string `json:"wallet"`
}

// JoinRequest is an inbound request to join a chat through an invite link.
type JoinRequest struct {
	ChatID             int64
	UserID             int64
	InviteLink         string
	InviteName         string
	CreatorIsBot       bool
	CreatesJoinRequest bool
}

// AdmissionResult reports what the admission gate did with a join request.
type AdmissionResult struct {
	Admitted    bool
	Member      *MemberRecord
	SideEffects []SideEffect
}
