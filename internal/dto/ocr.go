package dto

// OCRResult is the OCR service reply for one uploaded document. Courses may
// be empty, in which case labels are recovered from OCRText line by line.
type OCRResult struct {
	Filename   string   `json:"filename"`
	OCRText    string   `json:"ocr_text"`
	LinesCount int      `json:"lines_count"`
	Courses    []string `json:"courses"`
}
