package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mealsnap/food-diary/internal/domain"
	apperrors "github.com/mealsnap/food-diary/internal/errors"
	"github.com/mealsnap/food-diary/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	analyze func(ctx context.Context, image []byte, mimeType string) (*domain.NutritionRecord, error)
	report  func(ctx context.Context, totals domain.NutritionRecord) (*domain.DailyReport, error)
	chat    func(ctx context.Context, history []domain.ChatTurn, message string) (string, error)
}

func (f *fakeGateway) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*domain.NutritionRecord, error) {
	return f.analyze(ctx, image, mimeType)
}

func (f *fakeGateway) GenerateDailyReport(ctx context.Context, totals domain.NutritionRecord) (*domain.DailyReport, error) {
	return f.report(ctx, totals)
}

func (f *fakeGateway) SendChatMessage(ctx context.Context, history []domain.ChatTurn, message string) (string, error) {
	return f.chat(ctx, history, message)
}

var jpeg = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")

func record(cal, score float64, items ...string) domain.NutritionRecord {
	return domain.NutritionRecord{
		Calories:    cal,
		Protein:     cal / 20,
		Carbs:       cal / 8,
		Fat:         cal / 30,
		FoodItems:   items,
		HealthScore: score,
		Summary:     "ok",
	}
}

func newTestSession(gw domain.NutritionGateway) *Session {
	s := New("test", gw)
	var n atomic.Int64
	s.newID = func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
	return s
}

func staticAnalysis(rec domain.NutritionRecord) func(context.Context, []byte, string) (*domain.NutritionRecord, error) {
	return func(context.Context, []byte, string) (*domain.NutritionRecord, error) {
		r := rec
		return &r, nil
	}
}

func TestSession_AddMealFromImage(t *testing.T) {
	var gotMIME string
	gw := &fakeGateway{analyze: func(_ context.Context, _ []byte, mimeType string) (*domain.NutritionRecord, error) {
		gotMIME = mimeType
		r := record(400, 80, "Oatmeal")
		return &r, nil
	}}
	s := newTestSession(gw)

	meal, err := s.AddMealFromImage(context.Background(), domain.MealMorning, jpeg, "")
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", gotMIME)
	assert.Equal(t, domain.MealMorning, meal.Type)
	assert.Equal(t, "id-1", meal.ID)
	assert.Equal(t, services.EncodeDataURL("image/jpeg", jpeg), meal.Image)
	assert.False(t, meal.Timestamp.IsZero())

	snap := s.Snapshot()
	require.Len(t, snap.Meals, 1)
	assert.Equal(t, SlotIdle, snap.Slots[domain.MealMorning].Status)
	assert.Equal(t, 400.0, snap.Totals.Calories)
}

func TestSession_AnalysisFailureLeavesMealsUntouched(t *testing.T) {
	gw := &fakeGateway{analyze: func(context.Context, []byte, string) (*domain.NutritionRecord, error) {
		return nil, apperrors.NewSchemaViolationError(errors.New("bad"), "analyze_image")
	}}
	s := newTestSession(gw)

	_, err := s.AddMealFromImage(context.Background(), domain.MealNoon, jpeg, "image/jpeg")
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Empty(t, snap.Meals)
	assert.Equal(t, SlotIdle, snap.Slots[domain.MealNoon].Status)
	assert.Equal(t, apperrors.ErrSchemaViolation.Message, snap.Slots[domain.MealNoon].Error)

	require.NoError(t, s.DismissSlotError(domain.MealNoon))
	assert.Empty(t, s.Snapshot().Slots[domain.MealNoon].Error)
}

func TestSession_SequentialSameSlot(t *testing.T) {
	var calls atomic.Int32
	gw := &fakeGateway{analyze: func(context.Context, []byte, string) (*domain.NutritionRecord, error) {
		n := calls.Add(1)
		r := record(float64(n)*100, 60, fmt.Sprintf("Dish %d", n))
		return &r, nil
	}}
	s := newTestSession(gw)

	first, err := s.AddMealFromImage(context.Background(), domain.MealNoon, jpeg, "image/jpeg")
	require.NoError(t, err)
	second, err := s.AddMealFromImage(context.Background(), domain.MealNoon, jpeg, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	state := s.Snapshot()
	require.Len(t, state.Meals, 2)
	assert.Equal(t, first.ID, state.Meals[0].ID)
	assert.Equal(t, second.ID, state.Meals[1].ID)
	assert.Equal(t, []string{"Dish 1"}, state.Meals[0].FoodItems)
	assert.Equal(t, []string{"Dish 2"}, state.Meals[1].FoodItems)
	assert.Equal(t, SlotIdle, state.Slots[domain.MealNoon].Status)
	assert.Empty(t, state.Slots[domain.MealNoon].Error)
}

func TestSession_SlotGate(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	gw := &fakeGateway{analyze: func(context.Context, []byte, string) (*domain.NutritionRecord, error) {
		started <- struct{}{}
		<-release
		r := record(500, 70, "Pasta")
		return &r, nil
	}}
	s := newTestSession(gw)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.AddMealFromImage(context.Background(), domain.MealNoon, jpeg, "image/jpeg")
		assert.NoError(t, err)
	}()
	<-started

	assert.Equal(t, SlotLoading, s.Snapshot().Slots[domain.MealNoon].Status)

	_, err := s.AddMealFromImage(context.Background(), domain.MealNoon, jpeg, "image/jpeg")
	assert.ErrorIs(t, err, ErrSlotBusy)

	// other slots are independent
	_, err = s.BeginAnalysis(domain.MealEvening)
	assert.NoError(t, err)

	close(release)
	wg.Wait()

	snap := s.Snapshot()
	require.Len(t, snap.Meals, 1)
	assert.Equal(t, SlotIdle, snap.Slots[domain.MealNoon].Status)
}

func TestSession_UnknownSlot(t *testing.T) {
	s := newTestSession(&fakeGateway{})
	_, err := s.BeginAnalysis(domain.MealType("BRUNCH"))
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestSession_ResetSlotDiscardsLateResult(t *testing.T) {
	s := newTestSession(&fakeGateway{})

	ticket, err := s.BeginAnalysis(domain.MealEvening)
	require.NoError(t, err)
	require.NoError(t, s.ResetSlot(domain.MealEvening))

	_, err = s.CompleteAnalysis(ticket, record(300, 50, "Soup"), "")
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.ErrorIs(t, s.FailAnalysis(ticket, errors.New("late")), ErrStaleResult)
	assert.Empty(t, s.Meals())

	// a fresh request after the reset goes through
	ticket, err = s.BeginAnalysis(domain.MealEvening)
	require.NoError(t, err)
	_, err = s.CompleteAnalysis(ticket, record(300, 50, "Soup"), "")
	assert.NoError(t, err)
}

func TestSession_CloseDiscardsPendingWork(t *testing.T) {
	s := newTestSession(&fakeGateway{})

	ticket, err := s.BeginAnalysis(domain.MealMorning)
	require.NoError(t, err)
	s.Close()

	_, err = s.CompleteAnalysis(ticket, record(300, 50), "")
	assert.ErrorIs(t, err, ErrStaleResult)
	_, err = s.BeginAnalysis(domain.MealMorning)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_DeleteMeal(t *testing.T) {
	s := newTestSession(&fakeGateway{analyze: staticAnalysis(record(200, 60, "Toast"))})
	ctx := context.Background()

	m1, err := s.AddMealFromImage(ctx, domain.MealMorning, jpeg, "image/jpeg")
	require.NoError(t, err)
	m2, err := s.AddMealFromImage(ctx, domain.MealNoon, jpeg, "image/jpeg")
	require.NoError(t, err)
	m3, err := s.AddMealFromImage(ctx, domain.MealEvening, jpeg, "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, s.DeleteMeal(m2.ID))

	meals := s.Meals()
	require.Len(t, meals, 2)
	assert.Equal(t, m1.ID, meals[0].ID)
	assert.Equal(t, m3.ID, meals[1].ID)
	assert.Equal(t, services.Aggregate(meals), s.Totals())
	assert.Equal(t, 400.0, s.Totals().Calories)

	assert.ErrorIs(t, s.DeleteMeal(m2.ID), ErrMealNotFound)
	assert.Len(t, s.Meals(), 2)
}

func TestSession_MealsAreCopies(t *testing.T) {
	s := newTestSession(&fakeGateway{analyze: staticAnalysis(record(200, 60, "Toast"))})
	_, err := s.AddMealFromImage(context.Background(), domain.MealMorning, jpeg, "image/jpeg")
	require.NoError(t, err)

	meals := s.Meals()
	meals[0].Calories = 9999
	meals[0].FoodItems[0] = "Cake"

	assert.Equal(t, 200.0, s.Meals()[0].Calories)
	assert.Equal(t, "Toast", s.Meals()[0].FoodItems[0])
}

func TestSession_GenerateReport(t *testing.T) {
	var gotTotals domain.NutritionRecord
	gw := &fakeGateway{
		analyze: staticAnalysis(record(400, 80, "Salad")),
		report: func(_ context.Context, totals domain.NutritionRecord) (*domain.DailyReport, error) {
			gotTotals = totals
			return &domain.DailyReport{Title: "Good day", ShortSummary: "Nice", DetailedAdvice: "Keep going"}, nil
		},
	}
	s := newTestSession(gw)
	ctx := context.Background()

	_, err := s.GenerateReport(ctx)
	assert.ErrorIs(t, err, ErrNoMeals)
	assert.Equal(t, ReportNone, s.Snapshot().Report.Status)

	_, err = s.AddMealFromImage(ctx, domain.MealNoon, jpeg, "image/jpeg")
	require.NoError(t, err)

	report, err := s.GenerateReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Good day", report.Title)
	assert.Equal(t, s.Totals(), gotTotals)

	snap := s.Snapshot()
	assert.Equal(t, ReportReady, snap.Report.Status)
	require.NotNil(t, snap.Report.Report)
	assert.False(t, snap.Report.NeedsRegeneration)
}

func TestSession_MealChangeResetsReport(t *testing.T) {
	gw := &fakeGateway{
		analyze: staticAnalysis(record(400, 80, "Salad")),
		report: func(context.Context, domain.NutritionRecord) (*domain.DailyReport, error) {
			return &domain.DailyReport{Title: "t", ShortSummary: "s", DetailedAdvice: "d"}, nil
		},
	}
	s := newTestSession(gw)
	ctx := context.Background()

	m, err := s.AddMealFromImage(ctx, domain.MealNoon, jpeg, "image/jpeg")
	require.NoError(t, err)
	_, err = s.GenerateReport(ctx)
	require.NoError(t, err)

	_, err = s.AddMealFromImage(ctx, domain.MealEvening, jpeg, "image/jpeg")
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, ReportNone, snap.Report.Status)
	assert.Nil(t, snap.Report.Report)
	assert.True(t, snap.Report.NeedsRegeneration)

	_, err = s.GenerateReport(ctx)
	require.NoError(t, err)
	assert.False(t, s.Snapshot().Report.NeedsRegeneration)

	require.NoError(t, s.DeleteMeal(m.ID))
	snap = s.Snapshot()
	assert.Equal(t, ReportNone, snap.Report.Status)
	assert.True(t, snap.Report.NeedsRegeneration)
}

func TestSession_ReportDiscardedWhenMealsChangeMidFlight(t *testing.T) {
	s := newTestSession(&fakeGateway{analyze: staticAnalysis(record(400, 80, "Salad"))})
	ctx := context.Background()
	_, err := s.AddMealFromImage(ctx, domain.MealNoon, jpeg, "image/jpeg")
	require.NoError(t, err)

	ticket, _, err := s.BeginReport()
	require.NoError(t, err)
	_, _, err = s.BeginReport()
	assert.ErrorIs(t, err, ErrReportBusy)

	_, err = s.AddMealFromImage(ctx, domain.MealEvening, jpeg, "image/jpeg")
	require.NoError(t, err)

	err = s.CompleteReport(ticket, domain.DailyReport{Title: "stale"})
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.Nil(t, s.Report())
	assert.Equal(t, ReportNone, s.Snapshot().Report.Status)
}

func TestSession_FailedReportRestoresPreviousState(t *testing.T) {
	fail := false
	gw := &fakeGateway{
		analyze: staticAnalysis(record(400, 80, "Salad")),
		report: func(context.Context, domain.NutritionRecord) (*domain.DailyReport, error) {
			if fail {
				return nil, apperrors.NewEmptyResponseError("generate_report")
			}
			return &domain.DailyReport{Title: "first", ShortSummary: "s", DetailedAdvice: "d"}, nil
		},
	}
	s := newTestSession(gw)
	ctx := context.Background()
	_, err := s.AddMealFromImage(ctx, domain.MealNoon, jpeg, "image/jpeg")
	require.NoError(t, err)

	// no previous report
	fail = true
	_, err = s.GenerateReport(ctx)
	assert.ErrorIs(t, err, apperrors.ErrEmptyResponse)
	snap := s.Snapshot()
	assert.Equal(t, ReportNone, snap.Report.Status)
	assert.Equal(t, apperrors.ErrEmptyResponse.Message, snap.Report.Error)

	// previous report survives a failed regeneration
	fail = false
	_, err = s.GenerateReport(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot().Report.Error)

	fail = true
	_, err = s.GenerateReport(ctx)
	require.Error(t, err)
	snap = s.Snapshot()
	assert.Equal(t, ReportReady, snap.Report.Status)
	require.NotNil(t, snap.Report.Report)
	assert.Equal(t, "first", snap.Report.Report.Title)
	assert.NotEmpty(t, snap.Report.Error)

	s.DismissReportError()
	assert.Empty(t, s.Snapshot().Report.Error)
}

func TestSession_Chat(t *testing.T) {
	var gotHistory []domain.ChatTurn
	gw := &fakeGateway{chat: func(_ context.Context, history []domain.ChatTurn, message string) (string, error) {
		gotHistory = history
		return "answer to " + message, nil
	}}
	s := newTestSession(gw)
	ctx := context.Background()

	reply, err := s.SendChat(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModel, reply.Role)
	assert.Equal(t, "answer to first", reply.Text)
	assert.Empty(t, gotHistory)

	_, err = s.SendChat(ctx, "  second ")
	require.NoError(t, err)
	assert.Equal(t, []domain.ChatTurn{
		{Role: domain.RoleUser, Text: "first"},
		{Role: domain.RoleModel, Text: "answer to first"},
	}, gotHistory)

	transcript := s.Transcript()
	require.Len(t, transcript, 4)
	assert.Equal(t, "second", transcript[2].Text)
	assert.Equal(t, domain.RoleUser, transcript[2].Role)
	assert.Equal(t, "answer to second", transcript[3].Text)
}

func TestSession_ChatOptimisticAndFailure(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	gw := &fakeGateway{chat: func(context.Context, []domain.ChatTurn, string) (string, error) {
		started <- struct{}{}
		<-release
		return "", apperrors.NewExternalAPIError(errors.New("503"), apperrors.CodeTransport, "down", "fake")
	}}
	s := newTestSession(gw)

	done := make(chan domain.ChatMessage, 1)
	go func() {
		reply, err := s.SendChat(context.Background(), "hello")
		assert.NoError(t, err)
		done <- reply
	}()
	<-started

	snap := s.Snapshot()
	assert.True(t, snap.ChatPending)
	require.Len(t, snap.Chat, 1)
	assert.Equal(t, "hello", snap.Chat[0].Text)

	_, err := s.SendChat(context.Background(), "again")
	assert.ErrorIs(t, err, ErrChatBusy)

	close(release)
	reply := <-done
	assert.Equal(t, ChatFailureReply, reply.Text)

	transcript := s.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, domain.RoleUser, transcript[0].Role)
	assert.Equal(t, domain.RoleModel, transcript[1].Role)
	assert.Equal(t, ChatFailureReply, transcript[1].Text)
	assert.False(t, s.Snapshot().ChatPending)
}

func TestSession_ChatEmptyMessage(t *testing.T) {
	s := newTestSession(&fakeGateway{})
	_, err := s.SendChat(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, s.Transcript())
}

func TestSession_ConcurrentSlots(t *testing.T) {
	s := newTestSession(&fakeGateway{analyze: func(context.Context, []byte, string) (*domain.NutritionRecord, error) {
		time.Sleep(5 * time.Millisecond)
		r := record(100, 50, "Bite")
		return &r, nil
	}})

	var wg sync.WaitGroup
	for _, slot := range domain.MealTypes {
		wg.Add(1)
		go func(slot domain.MealType) {
			defer wg.Done()
			_, err := s.AddMealFromImage(context.Background(), slot, jpeg, "image/jpeg")
			assert.NoError(t, err)
		}(slot)
	}
	wg.Wait()

	assert.Len(t, s.Meals(), len(domain.MealTypes))
	assert.Equal(t, 300.0, s.Totals().Calories)
}
