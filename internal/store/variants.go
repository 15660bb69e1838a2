// ABOUTME: Per-kind codecs mapping action variants to their SQLite tables
// ABOUTME: Drives tag-based dispatch when reading and writing action details

package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// variantCodec describes how one action kind is stored in its own table,
// keyed by action_id.
type variantCodec struct {
	table   string
	columns []string
	// values returns column values in the same order as columns.
	values func(d ActionDetails) []any
	// scan reads one row (after action_id) into a fresh payload.
	scan func(row scanner) (ActionDetails, error)
}

type scanner interface {
	Scan(dest ...any) error
}

var variantCodecs = map[ActionKind]variantCodec{
	KindPlanting: {
		table:   "action_planting",
		columns: []string{"crop_type", "variety", "seeding_rate", "planting_date"},
		values: func(d ActionDetails) []any {
			p := d.(*Planting)
			return []any{p.CropType, nullString(p.Variety), nullString(p.SeedingRate), nullTime(p.PlantingDate)}
		},
		scan: func(row scanner) (ActionDetails, error) {
			var p Planting
			var variety, rate, date sql.NullString
			if err := row.Scan(&p.CropType, &variety, &rate, &date); err != nil {
				return nil, err
			}
			p.Variety, p.SeedingRate = variety.String, rate.String
			var err error
			p.PlantingDate, err = timePtr("planting_date", date)
			return &p, err
		},
	},
	KindFertilizing: {
		table:   "action_fertilizing",
		columns: []string{"fertilizer_type", "application_rate", "method"},
		values: func(d ActionDetails) []any {
			f := d.(*Fertilizing)
			return []any{nullString(f.FertilizerType), nullFloat(f.ApplicationRate), nullString(f.Method)}
		},
		scan: func(row scanner) (ActionDetails, error) {
			var f Fertilizing
			var typ, method sql.NullString
			var rate sql.NullFloat64
			if err := row.Scan(&typ, &rate, &method); err != nil {
				return nil, err
			}
			f.FertilizerType, f.Method = typ.String, method.String
			f.ApplicationRate = floatPtr(rate)
			return &f, nil
		},
	},
	KindWatering: {
		table:   "action_watering",
		columns: []string{"method", "amount", "water_source"},
		values: func(d ActionDetails) []any {
			w := d.(*Watering)
			return []any{nullString(w.Method), nullFloat(w.Amount), nullString(w.WaterSource)}
		},
		scan: func(row scanner) (ActionDetails, error) {
			var w Watering
			var method, source sql.NullString
			var amount sql.NullFloat64
			if err := row.Scan(&method, &amount, &source); err != nil {
				return nil, err
			}
			w.Method, w.WaterSource = method.String, source.String
			w.Amount = floatPtr(amount)
			return &w, nil
		},
	},
	KindTreatment: {
		table:   "action_treatment",
		columns: []string{"pesticide_type", "target_pest", "dosage", "application_method"},
		values: func(d ActionDetails) []any {
			t := d.(*Treatment)
			return []any{nullString(t.PesticideType), nullString(t.TargetPest), nullFloat(t.Dosage), nullString(t.ApplicationMethod)}
		},
		scan: func(row scanner) (ActionDetails, error) {
			var t Treatment
			var pesticide, pest, method sql.NullString
			var dosage sql.NullFloat64
			if err := row.Scan(&pesticide, &pest, &dosage, &method); err != nil {
				return nil, err
			}
			t.PesticideType, t.TargetPest, t.ApplicationMethod = pesticide.String, pest.String, method.String
			t.Dosage = floatPtr(dosage)
			return &t, nil
		},
	},
	KindHarvesting: {
		table:   "action_harvesting",
		columns: []string{"crop_yield", "harvest_date", "comments"},
		values: func(d ActionDetails) []any {
			h := d.(*Harvesting)
			return []any{nullFloat(h.CropYield), nullTime(h.HarvestDate), nullString(h.Comments)}
		},
		scan: func(row scanner) (ActionDetails, error) {
			var h Harvesting
			var yield sql.NullFloat64
			var date, comments sql.NullString
			if err := row.Scan(&yield, &date, &comments); err != nil {
				return nil, err
			}
			h.CropYield = floatPtr(yield)
			h.Comments = comments.String
			var err error
			h.HarvestDate, err = timePtr("harvest_date", date)
			return &h, err
		},
	},
	KindSoilReading: {
		table:   "action_soil_reading",
		columns: []string{"ph", "nitrogen", "phosphorus", "potassium", "organic_matter"},
		values: func(d ActionDetails) []any {
			s := d.(*SoilReading)
			return []any{nullFloat(s.PH), nullFloat(s.Nitrogen), nullFloat(s.Phosphorus), nullFloat(s.Potassium), nullString(s.OrganicMatter)}
		},
		scan: func(row scanner) (ActionDetails, error) {
			var s SoilReading
			var ph, n, p, k sql.NullFloat64
			var organic sql.NullString
			if err := row.Scan(&ph, &n, &p, &k, &organic); err != nil {
				return nil, err
			}
			s.PH, s.Nitrogen, s.Phosphorus, s.Potassium = floatPtr(ph), floatPtr(n), floatPtr(p), floatPtr(k)
			s.OrganicMatter = organic.String
			return &s, nil
		},
	},
}

func codecFor(kind ActionKind) (variantCodec, error) {
	c, ok := variantCodecs[kind]
	if !ok {
		return variantCodec{}, fmt.Errorf("no storage codec for action kind %q", kind)
	}
	return c, nil
}

func (c variantCodec) insertQuery() string {
	placeholders := strings.Repeat(", ?", len(c.columns))
	return fmt.Sprintf("INSERT INTO %s (action_id, %s) VALUES (?%s)",
		c.table, strings.Join(c.columns, ", "), placeholders)
}

// selectQuery selects action_id followed by the variant columns, filtered by
// the given WHERE clause.
func (c variantCodec) selectQuery(where string) string {
	return fmt.Sprintf("SELECT action_id, %s FROM %s WHERE %s",
		strings.Join(c.columns, ", "), c.table, where)
}

// idScanner prepends the action_id column to a codec scan.
type idScanner struct {
	src scanner
	id  *string
}

func (s idScanner) Scan(dest ...any) error {
	return s.src.Scan(append([]any{s.id}, dest...)...)
}
