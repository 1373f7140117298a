package model

// SubmitAnswerRequest is the request body for answering a poll
type SubmitAnswerRequest struct {
	PollID   string `json:"pollId"`
	OptionID int    `json:"optionId"`
}

// AnswerResult is returned after an answer is recorded
type AnswerResult struct {
	PollID          string      `json:"pollId"`
	OptionID        int         `json:"optionId"`
	ParticipantID   string      `json:"userId"`
	Tally           map[int]int `json:"results"`
	RespondedBy     []string    `json:"answeredBy"`
	RespondentCount int         `json:"respondentCount"`
}
