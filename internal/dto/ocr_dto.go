package dto

// OCRPageResponse is the extracted text for one uploaded file. Error is set
// when extraction failed for this file; sibling files are unaffected.
type OCRPageResponse struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
	Error    string `json:"error,omitempty"`
}

// OCRResponse groups extraction results for all uploaded files.
type OCRResponse struct {
	Pages []OCRPageResponse `json:"pages"`
}
