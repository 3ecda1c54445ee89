package collect

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord is returned when an adapter produces a record that fails validation.
var ErrInvalidRecord = errors.New("invalid tender record")

// Record is one normalized tender notice as produced by a platform adapter.
// Optional attributes are nil when the platform did not supply them.
type Record struct {
	Title        string `json:"title" yaml:"title" validate:"required"`
	URL          string `json:"url" yaml:"url" validate:"required,url"`
	PlatformName string `json:"platform_name" yaml:"platform_name" validate:"required"`

	// CIG only feeds the tender key; it is never stored.
	CIG string `json:"cig,omitempty" yaml:"cig,omitempty"`

	Amount               *float64   `json:"amount,omitempty" yaml:"amount,omitempty" validate:"omitempty,gte=0"`
	ProcedureType        *string    `json:"procedure_type,omitempty" yaml:"procedure_type,omitempty"`
	Category             *string    `json:"category,omitempty" yaml:"category,omitempty" validate:"omitempty,oneof=Works Supplies Services"`
	PlaceOfExecution     *string    `json:"place_of_execution,omitempty" yaml:"place_of_execution,omitempty"`
	ContractingAuthority *string    `json:"contracting_authority,omitempty" yaml:"contracting_authority,omitempty"`
	CPVCodes             *string    `json:"cpv_codes,omitempty" yaml:"cpv_codes,omitempty"`
	PublicationDate      *time.Time `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`
	Deadline             *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	EvaluationDate       *time.Time `json:"evaluation_date,omitempty" yaml:"evaluation_date,omitempty"`
	SectorType           *string    `json:"sector_type,omitempty" yaml:"sector_type,omitempty"`
	AwardCriterion       *string    `json:"award_criterion,omitempty" yaml:"award_criterion,omitempty"`
	ContractDuration     *string    `json:"contract_duration,omitempty" yaml:"contract_duration,omitempty"`
	NumLots              *int       `json:"num_lots,omitempty" yaml:"num_lots,omitempty" validate:"omitempty,gte=0"`
	Email                *string    `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	RUPName              *string    `json:"rup_name,omitempty" yaml:"rup_name,omitempty"`
	Status               *string    `json:"status,omitempty" yaml:"status,omitempty" validate:"omitempty,oneof=Active Updated Closed"`

	Attachments []AttachmentRef `json:"attachments,omitempty" yaml:"attachments,omitempty" validate:"dive"`
}

// AttachmentRef is a document link found on a tender page.
type AttachmentRef struct {
	FileName                 string   `json:"file_name" yaml:"file_name" validate:"required"`
	FileURL                  string   `json:"file_url" yaml:"file_url" validate:"required"`
	Category                 *string  `json:"category,omitempty" yaml:"category,omitempty" validate:"omitempty,oneof=Informative Compilable"`
	ClassificationConfidence *float64 `json:"classification_confidence,omitempty" yaml:"classification_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate trims the free-text fields and checks the record against its
// constraints. The returned error wraps ErrInvalidRecord.
func (r *Record) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.URL = strings.TrimSpace(r.URL)
	r.CIG = strings.TrimSpace(r.CIG)
	if err := recordValidator().Struct(r); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRecord, r.URL, err)
	}
	return nil
}

// Key returns the stable identity of the tender described by r.
func (r *Record) Key() string {
	return TenderKey(r.CIG, r.URL, r.Title)
}

// TenderKey derives a tender identity: CIG_<cig> when a CIG is known,
// otherwise HASH_ followed by the first 16 hex digits of md5("<url>_<title>").
func TenderKey(cig, url, title string) string {
	if cig = strings.TrimSpace(cig); cig != "" {
		return "CIG_" + cig
	}
	sum := md5.Sum([]byte(url + "_" + title))
	return "HASH_" + hex.EncodeToString(sum[:])[:16]
}
