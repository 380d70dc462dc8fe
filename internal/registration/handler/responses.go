package handler

type checkEmailResponse struct {
	Success string `json:"success"`
}

type entryFormResponse struct {
	AccessCode string `json:"accessCode"`
}

type recoverPromptResponse struct {
	Prompt string `json:"prompt"`
}
