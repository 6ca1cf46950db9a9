package entities

// InvitationNamePrefix marks invite links minted by the join protocol.
const InvitationNamePrefix = "GATE_"

// PendingInvitation binds a single-use invite link to the wallet that earned it.
type PendingInvitation struct {
	Token         string `json:"token"`
	WalletAddress string `json:"wallet"`
	ChatID        int64  `json:"chatId"`
}

// Invitation is a single-use invite created on the chat platform.
type Invitation struct {
	// Name identifies the link in join-request events.
	Name string
	// Link is the URL handed to the user.
	Link string
}

// JoinResult is returned to a wallet that passed the gate.
type JoinResult struct {
	Link string `json:"link"`
}
