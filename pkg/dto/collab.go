package dto

type ActiveUserResponse struct {
	UserID      int64  `json:"userId"`
	UserName    string `json:"userName"`
	Connections int    `json:"connections"`
}

type PresenceResponse struct {
	Users []ActiveUserResponse `json:"users"`
}

type ReplyRequest struct {
	Text string `json:"text"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
