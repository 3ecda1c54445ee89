package database

import "fmt"

// Status is the lifecycle state of a tender.
type Status string

const (
	StatusActive  Status = "Active"
	StatusUpdated Status = "Updated"
	StatusClosed  Status = "Closed"
)

// ParseStatus converts a stored or adapter-supplied status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusUpdated, StatusClosed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown tender status %q", s)
}

// afterChange is the status a tender moves to when a significant field
// changes. Closed is terminal.
func (s Status) afterChange() Status {
	switch s {
	case StatusActive, StatusUpdated:
		return StatusUpdated
	case StatusClosed:
		return StatusClosed
	}
	panic(fmt.Sprintf("unhandled tender status %q", s))
}

// isOpen reports whether a tender can still be closed by deadline expiry.
func (s Status) isOpen() bool {
	switch s {
	case StatusActive, StatusUpdated:
		return true
	case StatusClosed:
		return false
	}
	panic(fmt.Sprintf("unhandled tender status %q", s))
}

// DownloadState tracks attachment retrieval.
type DownloadState int

const (
	DownloadFailed     DownloadState = -1
	DownloadPending    DownloadState = 0
	DownloadDownloaded DownloadState = 1
)

func (d DownloadState) String() string {
	switch d {
	case DownloadFailed:
		return "failed"
	case DownloadPending:
		return "pending"
	case DownloadDownloaded:
		return "downloaded"
	}
	return fmt.Sprintf("DownloadState(%d)", int(d))
}

// RunStatus is the outcome recorded for a platform run.
type RunStatus string

const (
	RunSuccess RunStatus = "Success"
	RunFailed  RunStatus = "Failed"
	RunPartial RunStatus = "Partial"
)

// Tender is one stored procurement notice.
type Tender struct {
	ID                   string   `db:"id"`
	Title                string   `db:"title"`
	Amount               *float64 `db:"amount"`
	ProcedureType        *string  `db:"procedure_type"`
	Category             *string  `db:"category"`
	PlaceOfExecution     *string  `db:"place_of_execution"`
	ContractingAuthority *string  `db:"contracting_authority"`
	PlatformName         string   `db:"platform_name"`
	CPVCodes             *string  `db:"cpv_codes"`
	PublicationDate      NullTime `db:"publication_date"`
	Deadline             NullTime `db:"deadline"`
	EvaluationDate       NullTime `db:"evaluation_date"`
	SectorType           *string  `db:"sector_type"`
	URL                  string   `db:"url"`
	AwardCriterion       *string  `db:"award_criterion"`
	ContractDuration     *string  `db:"contract_duration"`
	NumLots              *int64   `db:"num_lots"`
	Email                *string  `db:"email"`
	RUPName              *string  `db:"rup_name"`
	CreatedAt            NullTime `db:"created_at"`
	LastUpdatedAt        NullTime `db:"last_updated_at"`
	Status               Status   `db:"status"`
	DataQualityScore     float64  `db:"data_quality_score"`
}

// qualityScore is the percentage of completeness fields that are filled.
func (t *Tender) qualityScore() float64 {
	filled := 0
	for _, ok := range []bool{
		t.Title != "",
		t.Amount != nil,
		nonEmpty(t.ProcedureType),
		nonEmpty(t.Category),
		nonEmpty(t.PlaceOfExecution),
		nonEmpty(t.ContractingAuthority),
		nonEmpty(t.CPVCodes),
		t.PublicationDate.Valid,
		t.Deadline.Valid,
		nonEmpty(t.SectorType),
		nonEmpty(t.AwardCriterion),
		nonEmpty(t.ContractDuration),
		t.NumLots != nil,
		nonEmpty(t.Email),
		nonEmpty(t.RUPName),
		t.EvaluationDate.Valid,
	} {
		if ok {
			filled++
		}
	}
	return float64(filled) / 16 * 100
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// ExtractedFields holds clauses derived from a tender's documents.
type ExtractedFields struct {
	TenderID               string     `db:"tender_id" json:"tender_id"`
	RequiredQualifications string     `db:"required_qualifications" json:"required_qualifications"`
	EvaluationCriteria     string     `db:"evaluation_criteria" json:"evaluation_criteria"`
	ProcessDescription     string     `db:"process_description" json:"process_description"`
	DeliveryMethods        string     `db:"delivery_methods" json:"delivery_methods"`
	RequiredDocumentation  string     `db:"required_documentation" json:"required_documentation"`
	ExtractionDate         NullTime   `db:"extraction_date" json:"extraction_date"`
	ConfidenceScore        float64    `db:"confidence_score" json:"confidence_score"`
	SourceDocuments        StringList `db:"source_documents" json:"source_documents"`
}

// Attachment is a document reference belonging to a tender.
type Attachment struct {
	ID                       int64         `db:"id"`
	TenderID                 string        `db:"tender_id"`
	FileName                 string        `db:"file_name"`
	FileURL                  string        `db:"file_url"`
	LocalPath                *string       `db:"local_path"`
	FileSizeBytes            *int64        `db:"file_size_bytes"`
	Category                 *string       `db:"category"`
	ClassificationConfidence *float64      `db:"classification_confidence"`
	Downloaded               DownloadState `db:"downloaded"`
	DownloadDate             NullTime      `db:"download_date"`
	DownloadError            *string       `db:"download_error"`
}

// RunLog records one platform run.
type RunLog struct {
	ID                    int64     `db:"id"`
	RunID                 *string   `db:"run_id"`
	PlatformName          string    `db:"platform_name"`
	RunStart              NullTime  `db:"run_start"`
	RunEnd                NullTime  `db:"run_end"`
	Status                RunStatus `db:"status"`
	TendersFound          int       `db:"tenders_found"`
	TendersNew            int       `db:"tenders_new"`
	TendersUpdated        int       `db:"tenders_updated"`
	AttachmentsDownloaded int       `db:"attachments_downloaded"`
	Level2Extracted       int       `db:"level2_extracted"`
	ErrorsCount           int       `db:"errors_count"`
	ErrorDetails          *string   `db:"error_details"`
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalTenders          int            `json:"total_tenders"`
	ActiveTenders         int            `json:"active_tenders"`
	ClosedTenders         int            `json:"closed_tenders"`
	TotalAttachments      int            `json:"total_attachments"`
	DownloadedAttachments int            `json:"downloaded_attachments"`
	Level2Extracted       int            `json:"level2_extracted"`
	AvgDataQuality        float64        `json:"avg_data_quality"`
	Recent7Days           int            `json:"recent_7days"`
	PlatformBreakdown     map[string]int `json:"platform_breakdown"`
}
