package protocol

import "encoding/json"

// Response is the flat one-line reply document every non-STATUS request
// receives, valid or not.
type Response struct {
	Success bool   `json:"success"`
	Command string `json:"command"`
	Pin     *int   `json:"pin,omitempty"`
	Value   *int   `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Render emits the response document for an executed (or rejected) command.
// resultValue < 0 means "no value to report". When success is false and no
// message was supplied, the command's own rejection reason is used.
// Identical input always yields identical output.
func Render(cmd Command, success bool, message string, resultValue int) string {
	resp := Response{
		Success: success,
		Command: cmd.Type.String(),
	}

	if cmd.Pin >= 0 {
		pin := cmd.Pin
		resp.Pin = &pin
	}
	if resultValue >= 0 {
		value := resultValue
		resp.Value = &value
	}

	switch {
	case message != "":
		resp.Message = message
	case !success && cmd.ErrorMessage != "":
		resp.Message = cmd.ErrorMessage
	}

	data, err := json.Marshal(resp)
	if err != nil {
		// Marshalling a flat struct of ints and strings cannot fail.
		return `{"success":false,"command":"INVALID","message":"internal render error"}`
	}
	return string(data)
}
