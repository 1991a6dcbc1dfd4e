package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mealsnap/food-diary/internal/domain"
	apperrors "github.com/mealsnap/food-diary/internal/errors"
	"github.com/mealsnap/food-diary/internal/logger"
	"github.com/mealsnap/food-diary/internal/services"
)

// ChatFailureReply is appended as a model turn when a chat call fails.
const ChatFailureReply = "Sorry, something went wrong while answering. Please try again in a moment."

// SlotStatus is the analysis state of one meal slot
type SlotStatus string

const (
	SlotIdle    SlotStatus = "idle"
	SlotLoading SlotStatus = "loading"
)

// ReportStatus is the state of the daily report
type ReportStatus string

const (
	ReportNone       ReportStatus = "none"
	ReportGenerating ReportStatus = "generating"
	ReportReady      ReportStatus = "ready"
)

type slotState struct {
	status SlotStatus
	err    string
	// generation changes whenever a pending analysis is abandoned, so its
	// late result can be recognised and dropped.
	generation uint64
}

type reportState struct {
	status            ReportStatus
	report            *domain.DailyReport
	err               string
	needsRegeneration bool
	// restored when generation fails
	prevStatus ReportStatus
}

// AnalysisTicket identifies one pending image analysis.
type AnalysisTicket struct {
	Slot       domain.MealType
	generation uint64
}

// ReportTicket identifies one pending report generation.
type ReportTicket struct {
	mealsVersion uint64
	generation   uint64
}

// Session holds the in-memory diary of one user: meals, per-slot analysis
// state, the daily report and the chat transcript. The mutex is never held
// while the gateway is called.
type Session struct {
	id      string
	gateway domain.NutritionGateway
	now     func() time.Time
	newID   func() string
	log     *slog.Logger

	mu               sync.Mutex
	meals            []domain.Meal
	slots            map[domain.MealType]*slotState
	report           reportState
	reportGeneration uint64
	mealsVersion     uint64
	transcript       []domain.ChatMessage
	chatPending      bool
	closed           bool
	lastActive       time.Time
}

// New creates an empty session bound to a gateway.
func New(id string, gateway domain.NutritionGateway) *Session {
	s := &Session{
		id:      id,
		gateway: gateway,
		now:     time.Now,
		newID:   newTimeBasedID,
		log:     logger.Component("session").With("session_id", id),
		slots:   make(map[domain.MealType]*slotState, len(domain.MealTypes)),
		report:  reportState{status: ReportNone},
	}
	for _, t := range domain.MealTypes {
		s.slots[t] = &slotState{status: SlotIdle}
	}
	s.lastActive = s.now()
	return s
}

func newTimeBasedID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LastActive reports when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close abandons every pending continuation; their results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, slot := range s.slots {
		slot.generation++
		slot.status = SlotIdle
	}
	s.reportGeneration++
}

func (s *Session) touch() {
	s.lastActive = s.now()
}

func (s *Session) markActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
}

// --- image analysis -------------------------------------------------------

// BeginAnalysis moves a slot from idle to loading. A slot that is already
// loading rejects the request.
func (s *Session) BeginAnalysis(slot domain.MealType) (AnalysisTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return AnalysisTicket{}, ErrSessionClosed
	}
	st, ok := s.slots[slot]
	if !ok {
		return AnalysisTicket{}, ErrUnknownSlot
	}
	if st.status == SlotLoading {
		return AnalysisTicket{}, ErrSlotBusy
	}
	st.status = SlotLoading
	st.err = ""
	s.touch()
	return AnalysisTicket{Slot: slot, generation: st.generation}, nil
}

// CompleteAnalysis appends the analysed meal and returns the slot to idle.
// Any previous report is invalidated.
func (s *Session) CompleteAnalysis(t AnalysisTicket, record domain.NutritionRecord, image string) (*domain.Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.currentSlot(t)
	if err != nil {
		return nil, err
	}

	meal := domain.Meal{
		NutritionRecord: record,
		ID:              s.uniqueMealID(),
		Type:            t.Slot,
		Image:           image,
		Timestamp:       s.now(),
	}
	if meal.FoodItems == nil {
		meal.FoodItems = []string{}
	}
	s.meals = append(s.meals, meal)
	st.status = SlotIdle
	st.err = ""
	s.mealsChanged()
	s.touch()
	return &meal, nil
}

// FailAnalysis records a user-facing error on the slot and returns it to
// idle. The meal list is left untouched.
func (s *Session) FailAnalysis(t AnalysisTicket, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.currentSlot(t)
	if err != nil {
		return err
	}
	st.status = SlotIdle
	st.err = apperrors.UserMessage(cause)
	s.touch()
	return nil
}

// ResetSlot abandons a pending analysis and clears the slot error.
func (s *Session) ResetSlot(slot domain.MealType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		return ErrUnknownSlot
	}
	if st.status == SlotLoading {
		st.generation++
	}
	st.status = SlotIdle
	st.err = ""
	return nil
}

// DismissSlotError clears the error shown for a slot.
func (s *Session) DismissSlotError(slot domain.MealType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		return ErrUnknownSlot
	}
	st.err = ""
	return nil
}

func (s *Session) currentSlot(t AnalysisTicket) (*slotState, error) {
	if s.closed {
		return nil, ErrStaleResult
	}
	st, ok := s.slots[t.Slot]
	if !ok {
		return nil, ErrUnknownSlot
	}
	if st.generation != t.generation || st.status != SlotLoading {
		return nil, ErrStaleResult
	}
	return st, nil
}

func (s *Session) uniqueMealID() string {
	for {
		id := s.newID()
		if !s.hasMeal(id) {
			return id
		}
	}
}

func (s *Session) hasMeal(id string) bool {
	for _, m := range s.meals {
		if m.ID == id {
			return true
		}
	}
	return false
}

// AddMealFromImage runs the full analysis flow for one photo: gate the
// slot, encode the image, call the gateway and record the outcome.
func (s *Session) AddMealFromImage(ctx context.Context, slot domain.MealType, image []byte, mimeType string) (*domain.Meal, error) {
	ticket, err := s.BeginAnalysis(slot)
	if err != nil {
		return nil, err
	}

	mimeType = services.ResolveImageMIMEType(image, mimeType)
	dataURL := services.EncodeDataURL(mimeType, image)

	record, err := s.gateway.AnalyzeImage(ctx, image, mimeType)
	if err != nil {
		if ferr := s.FailAnalysis(ticket, err); ferr != nil {
			s.log.InfoContext(ctx, "Discarded failed analysis", "slot", slot, "reason", ferr)
		}
		return nil, err
	}

	meal, err := s.CompleteAnalysis(ticket, *record, dataURL)
	if err != nil {
		s.log.InfoContext(ctx, "Discarded analysis result", "slot", slot, "reason", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "Meal added", "meal_id", meal.ID, "slot", slot, "calories", meal.Calories)
	return meal, nil
}

// --- meal list ------------------------------------------------------------

// DeleteMeal removes exactly one meal and invalidates the report.
func (s *Session) DeleteMeal(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.meals {
		if m.ID == id {
			s.meals = append(s.meals[:i:i], s.meals[i+1:]...)
			s.mealsChanged()
			s.touch()
			return nil
		}
	}
	return ErrMealNotFound
}

// Meals returns a copy of the meal list in insertion order.
func (s *Session) Meals() []domain.Meal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMeals(s.meals)
}

// Totals aggregates the current meal list.
func (s *Session) Totals() domain.NutritionRecord {
	return services.Aggregate(s.Meals())
}

// mealsChanged resets the report unconditionally. Caller holds the lock.
func (s *Session) mealsChanged() {
	s.mealsVersion++
	if s.report.status != ReportNone || s.report.report != nil {
		s.report.needsRegeneration = true
	}
	s.report.status = ReportNone
	s.report.report = nil
	s.report.err = ""
}

func copyMeals(meals []domain.Meal) []domain.Meal {
	out := make([]domain.Meal, len(meals))
	for i, m := range meals {
		out[i] = m
		out[i].FoodItems = append([]string(nil), m.FoodItems...)
	}
	return out
}

// --- daily report ---------------------------------------------------------

// BeginReport moves the report to generating and returns the totals to send.
func (s *Session) BeginReport() (ReportTicket, domain.NutritionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ReportTicket{}, domain.NutritionRecord{}, ErrSessionClosed
	}
	if len(s.meals) == 0 {
		return ReportTicket{}, domain.NutritionRecord{}, ErrNoMeals
	}
	if s.report.status == ReportGenerating {
		return ReportTicket{}, domain.NutritionRecord{}, ErrReportBusy
	}
	s.reportGeneration++
	s.report.prevStatus = s.report.status
	s.report.status = ReportGenerating
	s.report.err = ""
	s.touch()
	totals := services.Aggregate(copyMeals(s.meals))
	return ReportTicket{mealsVersion: s.mealsVersion, generation: s.reportGeneration}, totals, nil
}

// CompleteReport stores a generated report unless the meals changed since
// the request was made.
func (s *Session) CompleteReport(t ReportTicket, report domain.DailyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reportCurrent(t) {
		return ErrStaleResult
	}
	s.report.status = ReportReady
	s.report.report = &report
	s.report.err = ""
	s.report.needsRegeneration = false
	s.touch()
	return nil
}

// FailReport records the error and restores the state that preceded the
// request. A pending regeneration flag stays set.
func (s *Session) FailReport(t ReportTicket, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reportCurrent(t) {
		return ErrStaleResult
	}
	s.report.status = s.report.prevStatus
	if s.report.status == ReportReady && s.report.report == nil {
		s.report.status = ReportNone
	}
	s.report.err = apperrors.UserMessage(cause)
	s.touch()
	return nil
}

func (s *Session) reportCurrent(t ReportTicket) bool {
	return !s.closed &&
		s.report.status == ReportGenerating &&
		t.generation == s.reportGeneration &&
		t.mealsVersion == s.mealsVersion
}

// GenerateReport aggregates the meals and asks the gateway for a report.
func (s *Session) GenerateReport(ctx context.Context) (*domain.DailyReport, error) {
	ticket, totals, err := s.BeginReport()
	if err != nil {
		return nil, err
	}

	report, err := s.gateway.GenerateDailyReport(ctx, totals)
	if err != nil {
		if ferr := s.FailReport(ticket, err); ferr != nil {
			s.log.InfoContext(ctx, "Discarded failed report", "reason", ferr)
		}
		return nil, err
	}

	if err := s.CompleteReport(ticket, *report); err != nil {
		s.log.InfoContext(ctx, "Discarded report for changed meals", "reason", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "Daily report ready", "title", report.Title, "meals", s.mealCount())
	return report, nil
}

// Report returns the current report, or nil when there is none.
func (s *Session) Report() *domain.DailyReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report.report == nil {
		return nil
	}
	r := *s.report.report
	return &r
}

// DismissReportError clears the report error.
func (s *Session) DismissReportError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.err = ""
}

func (s *Session) mealCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.meals)
}

// --- chat -----------------------------------------------------------------

// SendChat appends the user's message right away, asks the model with the
// prior transcript and appends the reply. A failed call appends
// ChatFailureReply instead; the transcript is never rolled back.
func (s *Session) SendChat(ctx context.Context, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ChatMessage{}, ErrSessionClosed
	}
	if s.chatPending {
		s.mu.Unlock()
		return domain.ChatMessage{}, ErrChatBusy
	}
	history := make([]domain.ChatTurn, 0, len(s.transcript))
	for _, m := range s.transcript {
		history = append(history, domain.ChatTurn{Role: m.Role, Text: m.Text})
	}
	s.transcript = append(s.transcript, domain.ChatMessage{
		ID:        s.newID(),
		Role:      domain.RoleUser,
		Text:      text,
		Timestamp: s.now(),
	})
	s.chatPending = true
	s.touch()
	s.mu.Unlock()

	reply, err := s.gateway.SendChatMessage(ctx, history, text)
	if err != nil {
		s.log.WarnContext(ctx, "Chat call failed", "error", err)
		reply = ChatFailureReply
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatPending = false
	if s.closed {
		return domain.ChatMessage{}, ErrStaleResult
	}
	msg := domain.ChatMessage{
		ID:        s.newID(),
		Role:      domain.RoleModel,
		Text:      reply,
		Timestamp: s.now(),
	}
	s.transcript = append(s.transcript, msg)
	s.touch()
	return msg, nil
}

// Transcript returns a copy of the chat history.
func (s *Session) Transcript() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.transcript...)
}

// --- snapshot -------------------------------------------------------------

// SlotView is the presentation view of a slot
type SlotView struct {
	Status SlotStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// ReportView is the presentation view of the report state
type ReportView struct {
	Status            ReportStatus        `json:"status"`
	Report            *domain.DailyReport `json:"report,omitempty"`
	Error             string              `json:"error,omitempty"`
	NeedsRegeneration bool                `json:"needsRegeneration"`
}

// State is a consistent copy of everything the presentation layer shows
type State struct {
	ID          string                       `json:"id"`
	Meals       []domain.Meal                `json:"meals"`
	Totals      domain.NutritionRecord       `json:"totals"`
	Slots       map[domain.MealType]SlotView `json:"slots"`
	Report      ReportView                   `json:"report"`
	Chat        []domain.ChatMessage         `json:"chat"`
	ChatPending bool                         `json:"chatPending"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	meals := copyMeals(s.meals)
	slots := make(map[domain.MealType]SlotView, len(s.slots))
	for t, st := range s.slots {
		slots[t] = SlotView{Status: st.status, Error: st.err}
	}
	var report *domain.DailyReport
	if s.report.report != nil {
		r := *s.report.report
		report = &r
	}
	return State{
		ID:     s.id,
		Meals:  meals,
		Totals: services.Aggregate(meals),
		Slots:  slots,
		Report: ReportView{
			Status:            s.report.status,
			Report:            report,
			Error:             s.report.err,
			NeedsRegeneration: s.report.needsRegeneration,
		},
		Chat:        append([]domain.ChatMessage{}, s.transcript...),
		ChatPending: s.chatPending,
	}
}
