package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// Defaults applied to optional program setting fields on creation.
const (
	DefaultTimezone          = "WIB"
	DefaultParticipantsTotal = 60
	DefaultCostToParticipate = "Free"
)

// ProgramSetting describes one edition of the training program offered by
// the institution. At most one record is active at any time; the active
// record is what the public site shows.
type ProgramSetting struct {
	// ID is the unique identifier of the program setting.
	ID uuid.UUID `json:"id" db:"id"`

	// Slug is the unique, human-readable key of the record.
	Slug string `json:"slug" db:"slug"`

	// IsActive marks the record as the current offering.
	IsActive bool `json:"isActive" db:"is_active"`

	Program         ProgramInfo     `json:"program" db:"program"`
	Schedule        Schedule        `json:"schedule" db:"schedule"`
	Participants    Participants    `json:"participants" db:"participants"`
	Location        Location        `json:"location" db:"location"`
	ProgramFeatures ProgramFeatures `json:"programFeatures" db:"program_features"`

	// CreatedAt is the timestamp at which the record was created. The most
	// recently created record is promoted when the active one is deleted.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the record.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ProgramInfo names the program and its batch.
type ProgramInfo struct {
	Name       string `json:"name"`
	NameSuffix string `json:"nameSuffix"`
	ShortName  string `json:"shortName"`
	Batch      int    `json:"batch"`
	BatchName  string `json:"batchName"`
	Organizer  string `json:"organizer"`
}

// Validate implements validation.Validatable.
func (p ProgramInfo) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.NameSuffix, validation.Required),
		validation.Field(&p.ShortName, validation.Required),
		validation.Field(&p.Batch, validation.Required, validation.Min(1)),
		validation.Field(&p.BatchName, validation.Required),
		validation.Field(&p.Organizer, validation.Required),
	)
}

// Schedule holds the application and training dates.
type Schedule struct {
	ApplicationDeadline time.Time `json:"applicationDeadline"`
	StartDate           time.Time `json:"startDate"`
	EndDate             time.Time `json:"endDate"`
	TrainingDays        string    `json:"trainingDays"`
	TrainingHours       string    `json:"trainingHours"`
	Timezone            string    `json:"timezone"`
}

// UnmarshalJSON accepts the dates either as RFC 3339 timestamps or as
// plain YYYY-MM-DD dates, which are taken as midnight UTC.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	type plain Schedule
	var raw struct {
		plain
		ApplicationDeadline jsonDate `json:"applicationDeadline"`
		StartDate           jsonDate `json:"startDate"`
		EndDate             jsonDate `json:"endDate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Schedule(raw.plain)
	s.ApplicationDeadline = raw.ApplicationDeadline.Time
	s.StartDate = raw.StartDate.Time
	s.EndDate = raw.EndDate.Time
	return nil
}

// Validate implements validation.Validatable.
func (s Schedule) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ApplicationDeadline, validation.Required),
		validation.Field(&s.StartDate, validation.Required),
		validation.Field(&s.EndDate, validation.Required, validation.By(notBefore(s.StartDate, "endDate must not be before startDate"))),
		validation.Field(&s.TrainingDays, validation.Required),
		validation.Field(&s.TrainingHours, validation.Required),
	)
}

// Participants bounds the cohort.
type Participants struct {
	Total  int  `json:"total"`
	MinAge *int `json:"minAge,omitempty"`
	MaxAge *int `json:"maxAge,omitempty"`
}

// UnmarshalJSON defaults Total when the field is absent. An explicit zero
// is kept.
func (p *Participants) UnmarshalJSON(data []byte) error {
	type plain Participants
	raw := plain{Total: DefaultParticipantsTotal}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Participants(raw)
	return nil
}

// Validate implements validation.Validatable.
func (p Participants) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Total, validation.Min(0)),
		validation.Field(&p.MinAge, validation.Min(0)),
		validation.Field(&p.MaxAge, validation.Min(0), validation.By(notBelow(p.MinAge, "maxAge must not be below minAge"))),
	)
}

// Location is where the training takes place.
type Location struct {
	Venue         string `json:"venue"`
	City          string `json:"city"`
	FullAddress   string `json:"fullAddress"`
	GoogleMapsURL string `json:"googleMapsUrl"`
	Country       string `json:"country"`
}

// Validate implements validation.Validatable.
func (l Location) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Venue, validation.Required),
		validation.Field(&l.City, validation.Required),
		validation.Field(&l.FullAddress, validation.Required),
		validation.Field(&l.GoogleMapsURL, validation.Required),
		validation.Field(&l.Country, validation.Required),
	)
}

// ProgramFeatures lists what the program provides to participants.
type ProgramFeatures struct {
	IsFunded              bool   `json:"isFunded"`
	ProvidesAccommodation bool   `json:"providesAccommodation"`
	ProvidesFoodAllowance bool   `json:"providesFoodAllowance"`
	ProvidesCertificate   bool   `json:"providesCertificate"`
	ProvidesJobPlacement  bool   `json:"providesJobPlacement"`
	CostToParticipate     string `json:"costToParticipate"`
}

// ApplyDefaults fills optional text fields that were left empty. The
// participant total is defaulted when participants are decoded or
// created, since zero is a valid total.
func (p *ProgramSetting) ApplyDefaults() {
	if p.Schedule.Timezone == "" {
		p.Schedule.Timezone = DefaultTimezone
	}
	if p.ProgramFeatures.CostToParticipate == "" {
		p.ProgramFeatures.CostToParticipate = DefaultCostToParticipate
	}
}

// Validate implements validation.Validatable.
func (p ProgramSetting) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Slug, validation.Required),
		validation.Field(&p.Program),
		validation.Field(&p.Schedule),
		validation.Field(&p.Participants),
		validation.Field(&p.Location),
	)
}

// Activation reports the outcome of making a program setting active.
type Activation struct {
	Program       ProgramSetting
	Previous      *ProgramSetting
	AlreadyActive bool
}

// ProgramUpdate reports the outcome of a partial update. WasActive is the
// state of the record before the update and Previous is the record it
// displaced when the update activated it.
type ProgramUpdate struct {
	Program   ProgramSetting
	Previous  *ProgramSetting
	WasActive bool
}

// Removal reports the outcome of deleting a program setting. Promoted is
// set when the deleted record was active and another record took over.
type Removal struct {
	Program  ProgramSetting
	Promoted *ProgramSetting
}

func notBefore(start time.Time, message string) validation.RuleFunc {
	return func(value interface{}) error {
		end, ok := value.(time.Time)
		if !ok || end.IsZero() || start.IsZero() {
			return nil
		}
		if end.Before(start) {
			return errors.New(message)
		}
		return nil
	}
}

func notBelow(lower *int, message string) validation.RuleFunc {
	return func(value interface{}) error {
		var limit int
		switch v := value.(type) {
		case *int:
			if v == nil {
				return nil
			}
			limit = *v
		case int:
			limit = v
		default:
			return nil
		}
		if lower != nil && limit < *lower {
			return errors.New(message)
		}
		return nil
	}
}

// jsonDate decodes an RFC 3339 timestamp or a YYYY-MM-DD date.
type jsonDate struct {
	time.Time
}

var dateLayouts = []string{time.RFC3339Nano, time.DateOnly}

func (d *jsonDate) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	if value == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			d.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid date %q: want RFC 3339 or YYYY-MM-DD", value)
}
