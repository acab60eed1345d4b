package dto

// ReportExportRequest asks for a batch report rendered as a downloadable file.
type ReportExportRequest struct {
	Format string             `json:"format" validate:"required,oneof=csv xlsx"`
	Report GradeBatchResponse `json:"report" validate:"required"`
}

// SaveReportRequest persists a client-rendered report verbatim. The payload
// is raw base64 without a data-URI prefix.
type SaveReportRequest struct {
	PayloadBase64     string `json:"payloadBase64" validate:"required"`
	SuggestedFilename string `json:"suggestedFilename"`
}

// SaveReportResponse reports where the payload was written.
type SaveReportResponse struct {
	OK   bool   `json:"ok"`
	Path string `json:"path"`
}
