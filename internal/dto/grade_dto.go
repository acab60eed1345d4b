package dto

// QuestionGradeRequest describes one question inside a batch grading request.
type QuestionGradeRequest struct {
	QuestionID    int      `json:"question_id" validate:"required"`
	QuestionText  string   `json:"question_text"`
	StudentAnswer string   `json:"student_answer"`
	// ImageBase64 optionally carries a scanned answer when no typed answer
	// exists. Typed text wins when both are present.
	ImageBase64   string   `json:"student_image_base64"`
	ExpertAnswers []string `json:"expert_answers" validate:"required,min=1"`
	MaxScore      int      `json:"max_score" validate:"omitempty,gt=0"`
}

// GradeBatchRequest is the schema-driven batch grading payload.
type GradeBatchRequest struct {
	StudentID int                    `json:"student_id" validate:"required"`
	Answers   []QuestionGradeRequest `json:"answers" validate:"required,min=1,dive"`
}

// QuestionScoreResponse is the per-question entry of a batch report. Error is
// set when this question degraded to zero credit.
type QuestionScoreResponse struct {
	QuestionID  int    `json:"question_id"`
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
	Error       string `json:"error,omitempty"`
}

// GradeBatchResponse is the aggregate batch report.
type GradeBatchResponse struct {
	StudentID   int                     `json:"student_id"`
	TotalScore  int                     `json:"total_score"`
	PerQuestion []QuestionScoreResponse `json:"per_question"`
}

// GradeSingleRequest is the ad hoc single-question payload. Field names match
// the desktop client contract, including the camelCase image field.
type GradeSingleRequest struct {
	Question           string `json:"question"`
	StudentImageBase64 string `json:"studentImageBase64"`
	StudentText        string `json:"studentText"`
	Expert1            string `json:"expert1"`
	Expert2            string `json:"expert2"`
	Expert3            string `json:"expert3"`
}

// GradeSingleResponse carries the full structured grading result.
type GradeSingleResponse struct {
	Score            *int   `json:"score"`
	Explanation      string `json:"explanation"`
	CoverageSummary  string `json:"coverage_summary"`
	Suggestions      string `json:"suggestions"`
	RawModelResponse string `json:"raw_model_response"`
}
