// ABOUTME: Action model with a closed set of variant payloads selected by kind
// ABOUTME: Each variant validates its own field constraints before persistence

package store

import (
	"math"
	"time"
)

// ActionKind is the discriminator tag stored with every action.
type ActionKind string

// Action kinds. This set is closed; the schema rejects any other value.
const (
	KindPlanting    ActionKind = "planting"
	KindFertilizing ActionKind = "fertilizing"
	KindWatering    ActionKind = "watering"
	KindTreatment   ActionKind = "treatment"
	KindHarvesting  ActionKind = "harvesting"
	KindSoilReading ActionKind = "soil_reading"
)

// ActionKinds lists every kind in a fixed order.
var ActionKinds = []ActionKind{
	KindPlanting,
	KindFertilizing,
	KindWatering,
	KindTreatment,
	KindHarvesting,
	KindSoilReading,
}

// ActionDetails is the variant payload of an action. It is implemented only
// by the variant types in this package.
type ActionDetails interface {
	Kind() ActionKind
	Validate() error
	actionDetails()
}

// Action is a dated record of a field operation on a plot.
// PlotID is a plain reference; the plot owns the action, not the reverse.
type Action struct {
	ID         string
	PlotID     string
	ActionDate time.Time
	CreatedAt  time.Time
	Details    ActionDetails
}

// Kind returns the variant tag, or "" if no details are set.
func (a *Action) Kind() ActionKind {
	if a.Details == nil {
		return ""
	}
	return a.Details.Kind()
}

// Validate checks the shared fields and the variant payload.
func (a *Action) Validate() error {
	if a.PlotID == "" {
		return invalid("plot_id", "is required")
	}
	if a.ActionDate.IsZero() {
		return invalid("action_date", "is required")
	}
	if a.Details == nil {
		return invalid("kind", "is required")
	}
	return a.Details.Validate()
}

// ParseActionKind converts a tag into a known kind.
func ParseActionKind(s string) (ActionKind, error) {
	for _, k := range ActionKinds {
		if string(k) == s {
			return k, nil
		}
	}
	if s == "" {
		return "", invalid("kind", "is required")
	}
	return "", invalid("kind", "unknown action kind %q", s)
}

// NewActionDetails returns an empty payload for the given kind, ready to be
// decoded into.
func NewActionDetails(kind ActionKind) (ActionDetails, error) {
	switch kind {
	case KindPlanting:
		return &Planting{}, nil
	case KindFertilizing:
		return &Fertilizing{}, nil
	case KindWatering:
		return &Watering{}, nil
	case KindTreatment:
		return &Treatment{}, nil
	case KindHarvesting:
		return &Harvesting{}, nil
	case KindSoilReading:
		return &SoilReading{}, nil
	default:
		return nil, invalid("kind", "unknown action kind %q", kind)
	}
}

// Planting records a crop being sown.
type Planting struct {
	CropType     string     `json:"crop_type"`
	Variety      string     `json:"variety,omitempty"`
	SeedingRate  string     `json:"seeding_rate,omitempty"`
	PlantingDate *time.Time `json:"planting_date,omitempty"`
}

func (*Planting) Kind() ActionKind { return KindPlanting }
func (*Planting) actionDetails()   {}

// Validate checks planting constraints. CropType is required.
func (p *Planting) Validate() error {
	if err := requireText("crop_type", p.CropType, 100); err != nil {
		return err
	}
	if err := limitText("variety", p.Variety, 100); err != nil {
		return err
	}
	return limitText("seeding_rate", p.SeedingRate, 50)
}

// Fertilizing records a fertilizer application.
type Fertilizing struct {
	FertilizerType  string   `json:"fertilizer_type,omitempty"`
	ApplicationRate *float64 `json:"application_rate,omitempty"`
	Method          string   `json:"method,omitempty"`
}

func (*Fertilizing) Kind() ActionKind { return KindFertilizing }
func (*Fertilizing) actionDetails()   {}

// Validate checks fertilizing constraints. ApplicationRate must be positive.
func (f *Fertilizing) Validate() error {
	if err := limitText("fertilizer_type", f.FertilizerType, 100); err != nil {
		return err
	}
	if err := positive("application_rate", f.ApplicationRate); err != nil {
		return err
	}
	return limitText("method", f.Method, 100)
}

// Watering records irrigation.
type Watering struct {
	Method      string   `json:"method,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	WaterSource string   `json:"water_source,omitempty"`
}

func (*Watering) Kind() ActionKind { return KindWatering }
func (*Watering) actionDetails()   {}

// Validate checks watering constraints. Amount may be zero.
func (w *Watering) Validate() error {
	if err := limitText("method", w.Method, 50); err != nil {
		return err
	}
	if err := nonNegative("amount", w.Amount); err != nil {
		return err
	}
	return limitText("water_source", w.WaterSource, 100)
}

// Treatment records a pesticide application.
type Treatment struct {
	PesticideType     string   `json:"pesticide_type,omitempty"`
	TargetPest        string   `json:"target_pest,omitempty"`
	Dosage            *float64 `json:"dosage,omitempty"`
	ApplicationMethod string   `json:"application_method,omitempty"`
}

func (*Treatment) Kind() ActionKind { return KindTreatment }
func (*Treatment) actionDetails()   {}

// Validate checks treatment constraints. Dosage must be positive.
func (t *Treatment) Validate() error {
	if err := limitText("pesticide_type", t.PesticideType, 100); err != nil {
		return err
	}
	if err := limitText("target_pest", t.TargetPest, 100); err != nil {
		return err
	}
	if err := positive("dosage", t.Dosage); err != nil {
		return err
	}
	return limitText("application_method", t.ApplicationMethod, 100)
}

// Harvesting records a harvest and its yield.
type Harvesting struct {
	CropYield   *float64   `json:"crop_yield,omitempty"`
	HarvestDate *time.Time `json:"harvest_date,omitempty"`
	Comments    string     `json:"comments,omitempty"`
}

func (*Harvesting) Kind() ActionKind { return KindHarvesting }
func (*Harvesting) actionDetails()   {}

// Validate checks harvesting constraints.
func (h *Harvesting) Validate() error {
	if err := nonNegative("crop_yield", h.CropYield); err != nil {
		return err
	}
	return limitText("comments", h.Comments, 500)
}

// SoilReading records a soil test. PH is required and bounded to [0, 14].
type SoilReading struct {
	PH            *float64 `json:"ph"`
	Nitrogen      *float64 `json:"nitrogen,omitempty"`
	Phosphorus    *float64 `json:"phosphorus,omitempty"`
	Potassium     *float64 `json:"potassium,omitempty"`
	OrganicMatter string   `json:"organic_matter,omitempty"`
}

func (*SoilReading) Kind() ActionKind { return KindSoilReading }
func (*SoilReading) actionDetails()   {}

// Validate checks soil reading constraints.
func (s *SoilReading) Validate() error {
	if s.PH == nil {
		return invalid("ph", "is required")
	}
	if !(*s.PH >= 0 && *s.PH <= 14) {
		return invalid("ph", "must be between 0 and 14, got %g", *s.PH)
	}
	for _, n := range []struct {
		field string
		value *float64
	}{
		{"nitrogen", s.Nitrogen},
		{"phosphorus", s.Phosphorus},
		{"potassium", s.Potassium},
	} {
		if err := nonNegative(n.field, n.value); err != nil {
			return err
		}
	}
	return limitText("organic_matter", s.OrganicMatter, 255)
}

// positive accepts nil (field not recorded) or a finite value > 0.
func positive(field string, v *float64) error {
	if v != nil && !(*v > 0 && *v <= math.MaxFloat64) {
		return invalid(field, "must be greater than 0, got %g", *v)
	}
	return nil
}

// nonNegative accepts nil or a finite value >= 0.
func nonNegative(field string, v *float64) error {
	if v != nil && !(*v >= 0 && *v <= math.MaxFloat64) {
		return invalid(field, "must not be negative, got %g", *v)
	}
	return nil
}
