package models

// ApiResponse is the envelope every endpoint answers with.
type ApiResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Meta      *PageMeta   `json:"meta,omitempty"`
}

type PageMeta struct {
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Total  int64 `json:"total"`
}

func SuccessResponse(data interface{}, message string) ApiResponse {
	return ApiResponse{Success: true, Data: data, Message: message}
}

func ErrorResponse(err string) ApiResponse {
	return ApiResponse{Error: err}
}

// InternalErrorResponse hides the cause and hands back the request id so a
// client report can be matched to the server log line.
func InternalErrorResponse(requestID string) ApiResponse {
	return ApiResponse{Error: "Internal server error", RequestID: requestID}
}

func PaginatedResponse(data interface{}, page Page, total int64) ApiResponse {
	page = page.normalized()
	return ApiResponse{
		Success: true,
		Data:    data,
		Meta:    &PageMeta{Offset: page.Offset, Limit: page.Limit, Total: total},
	}
}
