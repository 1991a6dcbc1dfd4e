package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mealsnap/food-diary/internal/domain"
	apperrors "github.com/mealsnap/food-diary/internal/errors"
)

type fieldKind int

const (
	kindNumber fieldKind = iota
	kindString
	kindStringList
)

type fieldSpec struct {
	Name        string
	Kind        fieldKind
	Description string
}

// responseSchema is a provider-neutral description of a flat JSON object
// whose fields are all required.
type responseSchema struct {
	Name   string
	Fields []fieldSpec
}

func (r responseSchema) required() []string {
	names := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		names = append(names, f.Name)
	}
	return names
}

var nutritionSchema = responseSchema{
	Name: "nutrition_record",
	Fields: []fieldSpec{
		{Name: "calories", Kind: kindNumber, Description: "Total calories (kcal) of everything on the photo"},
		{Name: "protein", Kind: kindNumber, Description: "Total protein in grams"},
		{Name: "carbs", Kind: kindNumber, Description: "Total carbohydrates in grams"},
		{Name: "fat", Kind: kindNumber, Description: "Total fat in grams"},
		{Name: "foodItems", Kind: kindStringList, Description: "Names of all identified food items"},
		{Name: "healthScore", Kind: kindNumber, Description: "Healthiness of the meal from 0 (poor) to 100 (excellent)"},
		{Name: "summary", Kind: kindString, Description: "Short commentary on the meal"},
	},
}

var dailyReportSchema = responseSchema{
	Name: "daily_report",
	Fields: []fieldSpec{
		{Name: "title", Kind: kindString, Description: "Concise title for the day"},
		{Name: "shortSummary", Kind: kindString, Description: "One or two sentence summary"},
		{Name: "detailedAdvice", Kind: kindString, Description: "Detailed advice formatted as markdown"},
	},
}

// Pointer fields tell a missing field apart from a zero value.
type nutritionPayload struct {
	Calories    *float64 `json:"calories" validate:"required,min=0"`
	Protein     *float64 `json:"protein" validate:"required,min=0"`
	Carbs       *float64 `json:"carbs" validate:"required,min=0"`
	Fat         *float64 `json:"fat" validate:"required,min=0"`
	FoodItems   []string `json:"foodItems" validate:"required"`
	HealthScore *float64 `json:"healthScore" validate:"required,min=0,max=100"`
	Summary     *string  `json:"summary" validate:"required"`
}

type dailyReportPayload struct {
	Title          *string `json:"title" validate:"required"`
	ShortSummary   *string `json:"shortSummary" validate:"required"`
	DetailedAdvice *string `json:"detailedAdvice" validate:"required"`
}

// newResponseValidator reports fields by their JSON names.
func newResponseValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func parseNutritionRecord(v *validator.Validate, raw string) (*domain.NutritionRecord, error) {
	const op = "analyze_image"
	var p nutritionPayload
	if err := decodePayload(v, raw, &p, op); err != nil {
		return nil, err
	}

	items := make([]string, 0, len(p.FoodItems))
	for _, item := range p.FoodItems {
		if name := strings.TrimSpace(item); name != "" {
			items = append(items, name)
		}
	}
	return &domain.NutritionRecord{
		Calories:    *p.Calories,
		Protein:     *p.Protein,
		Carbs:       *p.Carbs,
		Fat:         *p.Fat,
		FoodItems:   items,
		HealthScore: *p.HealthScore,
		Summary:     strings.TrimSpace(*p.Summary),
	}, nil
}

func parseDailyReport(v *validator.Validate, raw string) (*domain.DailyReport, error) {
	const op = "generate_report"
	var p dailyReportPayload
	if err := decodePayload(v, raw, &p, op); err != nil {
		return nil, err
	}
	return &domain.DailyReport{
		Title:          strings.TrimSpace(*p.Title),
		ShortSummary:   strings.TrimSpace(*p.ShortSummary),
		DetailedAdvice: *p.DetailedAdvice,
	}, nil
}

// decodePayload turns raw model output into a validated payload. Empty output
// is an EmptyResponse; anything that is not the expected object is a
// SchemaViolation.
func decodePayload(v *validator.Validate, raw string, out any, op string) error {
	if strings.TrimSpace(raw) == "" {
		return apperrors.NewEmptyResponseError(op)
	}

	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return apperrors.NewSchemaViolationError(errors.New("no JSON object found in response"), op)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(jsonStr)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return apperrors.NewSchemaViolationError(fmt.Errorf("failed to parse response: %w", err), op)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperrors.NewSchemaViolationError(errors.New("unexpected content after JSON object"), op)
	}

	if err := v.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.NewSchemaViolationError(describeValidation(verrs), op)
		}
		return apperrors.NewSchemaViolationError(err, op)
	}
	return nil
}

func describeValidation(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("missing field %s", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s fails %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// extractJSON returns the outermost JSON object in s, tolerating markdown
// code fences or prose around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
