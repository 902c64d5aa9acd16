package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/examena/examena-backend/internal/config"
	"github.com/examena/examena-backend/internal/model"
	"github.com/examena/examena-backend/internal/repository"
	"github.com/examena/examena-backend/internal/scoring"
)

// memStore is an in-memory QuestionBank, SessionStore, and AnswerStore
// with the same transactional semantics as the pgx repositories:
// terminal sessions reject writes, batches are all-or-nothing, and
// answered_at never moves backwards.
type memStore struct {
	questions map[int64]model.Question
	sessions  map[uuid.UUID]*model.ExamSession
	sessionQs map[uuid.UUID][]model.SessionQuestion
	answers   map[uuid.UUID]map[int64]*model.Answer
	nextSQID  int64
	nextAnsID int64
}

func newMemStore(questions ...model.Question) *memStore {
	m := &memStore{
		questions: make(map[int64]model.Question),
		sessions:  make(map[uuid.UUID]*model.ExamSession),
		sessionQs: make(map[uuid.UUID][]model.SessionQuestion),
		answers:   make(map[uuid.UUID]map[int64]*model.Answer),
	}
	for _, q := range questions {
		m.questions[q.ID] = q
	}
	return m
}

func (m *memStore) ListIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.questions))
	for id := range m.questions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memStore) GetByIDs(_ context.Context, ids []int64) ([]model.Question, error) {
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := m.questions[id]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		out = append(out, q)
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, s *model.ExamSession, questionIDs []int64) error {
	s.ID = uuid.New()
	s.Status = model.SessionStatusInProgress

	stored := *s
	m.sessions[s.ID] = &stored

	sqs := make([]model.SessionQuestion, 0, len(questionIDs))
	for i, qid := range questionIDs {
		m.nextSQID++
		sqs = append(sqs, model.SessionQuestion{
			ID:         m.nextSQID,
			SessionID:  s.ID,
			QuestionID: qid,
			OrderIndex: i,
		})
	}
	m.sessionQs[s.ID] = sqs
	m.answers[s.ID] = make(map[int64]*model.Answer)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *s
	return &out, nil
}

func (m *memStore) QuestionsBySession(_ context.Context, sessionID uuid.UUID) ([]model.SessionQuestion, error) {
	sqs := m.sessionQs[sessionID]
	out := make([]model.SessionQuestion, len(sqs))
	copy(out, sqs)
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memStore) upsert(sessionID uuid.UUID, batch []model.AnswerSave) error {
	byID := make(map[int64]bool)
	for _, sq := range m.sessionQs[sessionID] {
		byID[sq.ID] = true
	}
	for _, a := range batch {
		if !byID[a.SessionQuestionID] {
			return repository.ErrUnknownSessionQuestion
		}
	}
	now := time.Now().UTC()
	for _, a := range batch {
		existing, ok := m.answers[sessionID][a.SessionQuestionID]
		if !ok {
			m.nextAnsID++
			m.answers[sessionID][a.SessionQuestionID] = &model.Answer{
				ID:                m.nextAnsID,
				SessionID:         sessionID,
				SessionQuestionID: a.SessionQuestionID,
				SelectedOptionID:  a.SelectedOptionID,
				AnsweredAt:        now,
			}
			continue
		}
		existing.SelectedOptionID = a.SelectedOptionID
		if now.After(existing.AnsweredAt) {
			existing.AnsweredAt = now
		}
	}
	return nil
}

func (m *memStore) Finalize(_ context.Context, sessionID uuid.UUID, status model.SessionStatus, submittedAt time.Time, answers []model.AnswerSave) (*model.SubmitResult, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if s.Status.Terminal() {
		return nil, repository.ErrSessionTerminal
	}
	if err := m.upsert(sessionID, answers); err != nil {
		return nil, err
	}

	rows := make([]scoring.Row, 0, len(m.sessionQs[sessionID]))
	for _, sq := range m.sessionQs[sessionID] {
		q := m.questions[sq.QuestionID]
		row := scoring.Row{Marks: q.Marks}
		if a := m.answers[sessionID][sq.ID]; a != nil && a.SelectedOptionID != nil {
			for _, o := range q.Options {
				if o.ID == *a.SelectedOptionID && o.IsCorrect {
					row.Correct = true
				}
			}
		}
		rows = append(rows, row)
	}
	result := scoring.Score(rows)

	s.Status = status
	s.Score = &result.Score
	s.SubmittedAt = &submittedAt

	return &model.SubmitResult{Status: status, Score: result.Score, Total: result.Total}, nil
}

func (m *memStore) ListExpired(_ context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, s := range m.sessions {
		if s.Status == model.SessionStatusInProgress && s.EndsAt.Before(before) {
			out = append(out, id)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) UpsertBatch(_ context.Context, sessionID uuid.UUID, answers []model.AnswerSave) error {
	s, ok := m.sessions[sessionID]
	if !ok {
		return pgx.ErrNoRows
	}
	if s.Status.Terminal() {
		return repository.ErrSessionTerminal
	}
	return m.upsert(sessionID, answers)
}

func (m *memStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	var out []model.Answer
	for _, a := range m.answers[sessionID] {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionQuestionID < out[j].SessionQuestionID })
	return out, nil
}

func (m *memStore) CountAnswered(_ context.Context, sessionID uuid.UUID) (int, error) {
	n := 0
	for _, a := range m.answers[sessionID] {
		if a.SelectedOptionID != nil {
			n++
		}
	}
	return n, nil
}

func bankQuestions() []model.Question {
	return []model.Question{
		{
			ID: 1, Text: "What is 2 + 2?", Marks: 1,
			Options: []model.Option{
				{ID: 11, QuestionID: 1, Text: "3"},
				{ID: 12, QuestionID: 1, Text: "4", IsCorrect: true},
				{ID: 13, QuestionID: 1, Text: "5"},
			},
		},
		{
			ID: 2, Text: "Which language has explicit error returns?", Marks: 1,
			Options: []model.Option{
				{ID: 21, QuestionID: 2, Text: "Python"},
				{ID: 22, QuestionID: 2, Text: "Go", IsCorrect: true},
				{ID: 23, QuestionID: 2, Text: "Java"},
			},
		},
		{
			ID: 3, Text: "How many bits in a byte?", Marks: 2,
			Options: []model.Option{
				{ID: 31, QuestionID: 3, Text: "8", IsCorrect: true},
				{ID: 32, QuestionID: 3, Text: "16"},
			},
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultNumQuestions:    2,
		DefaultDurationMinutes: 30,
	}
}

func newTestService(store *memStore) *ExamService {
	return NewExamService(
		testConfig(),
		store, store, store,
		nil,
		rand.New(rand.NewSource(7)),
		zerolog.Nop(),
	)
}

func startSession(t *testing.T, svc *ExamService, userID int, req model.StartExamRequest) *model.StartExamResponse {
	t.Helper()
	resp, err := svc.StartSession(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return resp
}

func optID(id int64) *int64 { return &id }

func TestStartSessionAppliesDefaults(t *testing.T) {
	svc := newTestService(newMemStore(bankQuestions()...))

	resp := startSession(t, svc, 1, model.StartExamRequest{})

	if len(resp.Questions) != 2 {
		t.Fatalf("question count = %d, want configured default 2", len(resp.Questions))
	}
	if resp.SessionID == uuid.Nil {
		t.Fatal("session id not assigned")
	}
	wantEnd := time.Now().UTC().Add(30 * time.Minute)
	if d := resp.EndsAt.Sub(wantEnd); d < -5*time.Second || d > 5*time.Second {
		t.Fatalf("ends_at = %v, want ~%v", resp.EndsAt, wantEnd)
	}
}

func TestStartSessionValidation(t *testing.T) {
	svc := newTestService(newMemStore(bankQuestions()...))

	_, err := svc.StartSession(context.Background(), 1, model.StartExamRequest{NumQuestions: -1})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	_, err = svc.StartSession(context.Background(), 1, model.StartExamRequest{DurationMinutes: -5})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestStartSessionEmptyPool(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.StartSession(context.Background(), 1, model.StartExamRequest{})
	if !errors.Is(err, ErrNoQuestionsAvailable) {
		t.Fatalf("err = %v, want ErrNoQuestionsAvailable", err)
	}
}

func TestStartSessionClampsToPool(t *testing.T) {
	svc := newTestService(newMemStore(bankQuestions()...))

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 50})

	if len(resp.Questions) != 3 {
		t.Fatalf("question count = %d, want full pool of 3", len(resp.Questions))
	}
	seen := make(map[int64]bool)
	for _, q := range resp.Questions {
		if seen[q.ID] {
			t.Fatalf("question %d drawn twice", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestStartSessionNeverLeaksAnswerKey(t *testing.T) {
	svc := newTestService(newMemStore(bankQuestions()...))

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 3})

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "is_correct") || strings.Contains(string(raw), "IsCorrect") {
		t.Fatalf("response leaks answer key: %s", raw)
	}
}

func TestAutosaveUpsertOverwriteAndClear(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 2})
	sqs, _ := store.QuestionsBySession(ctx, resp.SessionID)

	// First save.
	err := svc.Autosave(ctx, 1, resp.SessionID, []model.AnswerSave{
		{SessionQuestionID: sqs[0].ID, SelectedOptionID: optID(11)},
	})
	if err != nil {
		t.Fatalf("first autosave: %v", err)
	}

	// Overwrite, not append.
	err = svc.Autosave(ctx, 1, resp.SessionID, []model.AnswerSave{
		{SessionQuestionID: sqs[0].ID, SelectedOptionID: optID(12)},
	})
	if err != nil {
		t.Fatalf("overwrite autosave: %v", err)
	}

	answers, _ := store.ListBySession(ctx, resp.SessionID)
	if len(answers) != 1 {
		t.Fatalf("answer rows = %d, want 1 (upsert, not append)", len(answers))
	}
	if answers[0].SelectedOptionID == nil || *answers[0].SelectedOptionID != 12 {
		t.Fatalf("selected option = %v, want 12", answers[0].SelectedOptionID)
	}

	// Clearing stores an explicit nil, the row stays.
	err = svc.Autosave(ctx, 1, resp.SessionID, []model.AnswerSave{
		{SessionQuestionID: sqs[0].ID, SelectedOptionID: nil},
	})
	if err != nil {
		t.Fatalf("clear autosave: %v", err)
	}
	answers, _ = store.ListBySession(ctx, resp.SessionID)
	if len(answers) != 1 || answers[0].SelectedOptionID != nil {
		t.Fatalf("cleared answer = %+v, want one row with nil option", answers)
	}
	if n, _ := store.CountAnswered(ctx, resp.SessionID); n != 0 {
		t.Fatalf("answered count after clear = %d, want 0", n)
	}
}

func TestAutosaveUnknownSessionQuestion(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 2})
	sqs, _ := store.QuestionsBySession(ctx, resp.SessionID)

	err := svc.Autosave(ctx, 1, resp.SessionID, []model.AnswerSave{
		{SessionQuestionID: sqs[0].ID, SelectedOptionID: optID(12)},
		{SessionQuestionID: 999, SelectedOptionID: optID(12)},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	// All-or-nothing: the valid half of the batch must not land.
	if answers, _ := store.ListBySession(ctx, resp.SessionID); len(answers) != 0 {
		t.Fatalf("partial batch persisted: %+v", answers)
	}
}

func TestAutosaveAfterSubmitRejected(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 2})
	if _, err := svc.Submit(ctx, 1, resp.SessionID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	sqs, _ := store.QuestionsBySession(ctx, resp.SessionID)
	err := svc.Autosave(ctx, 1, resp.SessionID, []model.AnswerSave{
		{SessionQuestionID: sqs[0].ID, SelectedOptionID: optID(12)},
	})
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestOwnershipMismatchLooksLikeNotFound(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 2})

	if err := svc.Autosave(ctx, 2, resp.SessionID, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("autosave err = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.Submit(ctx, 2, resp.SessionID, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("submit err = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.GetSessionDetail(ctx, 2, resp.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("detail err = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.GetState(ctx, 2, resp.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("state err = %v, want ErrSessionNotFound", err)
	}
}

func TestSubmitMissingSession(t *testing.T) {
	svc := newTestService(newMemStore(bankQuestions()...))

	_, err := svc.Submit(context.Background(), 1, uuid.New(), nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSubmitScoresSavedAnswers(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 3})
	sqs, _ := store.QuestionsBySession(ctx, resp.SessionID)

	// Find the positions of questions 1 and 2 in the draw.
	byQuestion := make(map[int64]int64, len(sqs))
	for _, sq := range sqs {
		byQuestion[sq.QuestionID] = sq.ID
	}

	// Q1 answered correctly ("4"), Q2 answered wrong ("Java"),
	// Q3 left unanswered.
	err := svc.Autosave(ctx, 1, resp.SessionID, []model.AnswerSave{
		{SessionQuestionID: byQuestion[1], SelectedOptionID: optID(12)},
		{SessionQuestionID: byQuestion[2], SelectedOptionID: optID(23)},
	})
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}

	result, err := svc.Submit(ctx, 1, resp.SessionID, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Status != model.SessionStatusSubmitted {
		t.Fatalf("status = %s, want submitted", result.Status)
	}
	if result.Score != 1 || result.Total != 4 {
		t.Fatalf("score = %d/%d, want 1/4", result.Score, result.Total)
	}

	session, _ := store.GetByID(ctx, resp.SessionID)
	if session.Score == nil || *session.Score != 1 {
		t.Fatalf("persisted score = %v, want 1", session.Score)
	}
	if session.SubmittedAt == nil {
		t.Fatal("submitted_at not set")
	}
}

func TestSubmitAppliesFinalBatch(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 3})
	sqs, _ := store.QuestionsBySession(ctx, resp.SessionID)
	byQuestion := make(map[int64]int64, len(sqs))
	for _, sq := range sqs {
		byQuestion[sq.QuestionID] = sq.ID
	}

	// Everything answered correctly in the submit batch itself.
	result, err := svc.Submit(ctx, 1, resp.SessionID, []model.AnswerSave{
		{SessionQuestionID: byQuestion[1], SelectedOptionID: optID(12)},
		{SessionQuestionID: byQuestion[2], SelectedOptionID: optID(22)},
		{SessionQuestionID: byQuestion[3], SelectedOptionID: optID(31)},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 4 || result.Total != 4 {
		t.Fatalf("score = %d/%d, want 4/4", result.Score, result.Total)
	}
}

func TestSubmitAfterDeadlineAutoSubmits(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 2})
	store.sessions[resp.SessionID].EndsAt = time.Now().UTC().Add(-time.Minute)

	result, err := svc.Submit(ctx, 1, resp.SessionID, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Status != model.SessionStatusAutoSubmitted {
		t.Fatalf("status = %s, want auto_submitted", result.Status)
	}
}

func TestSubmitTwice(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 2})
	if _, err := svc.Submit(ctx, 1, resp.SessionID, nil); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := svc.Submit(ctx, 1, resp.SessionID, nil)
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second submit err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestGetSessionDetailPreservesDrawOrder(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 3})
	sqs, _ := store.QuestionsBySession(ctx, resp.SessionID)

	err := svc.Autosave(ctx, 1, resp.SessionID, []model.AnswerSave{
		{SessionQuestionID: sqs[0].ID, SelectedOptionID: optID(12)},
	})
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}

	detail, err := svc.GetSessionDetail(ctx, 1, resp.SessionID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}

	if len(detail.Questions) != 3 {
		t.Fatalf("question count = %d, want 3", len(detail.Questions))
	}
	for i, pair := range detail.Questions {
		if pair.SessionQuestionID != sqs[i].ID {
			t.Fatalf("position %d holds session question %d, want %d", i, pair.SessionQuestionID, sqs[i].ID)
		}
		if pair.Question.ID != sqs[i].QuestionID {
			t.Fatalf("position %d holds question %d, want %d", i, pair.Question.ID, sqs[i].QuestionID)
		}
	}
	if len(detail.Answers) != 1 {
		t.Fatalf("answer count = %d, want 1", len(detail.Answers))
	}
}

func TestGetState(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 3})
	sqs, _ := store.QuestionsBySession(ctx, resp.SessionID)

	err := svc.Autosave(ctx, 1, resp.SessionID, []model.AnswerSave{
		{SessionQuestionID: sqs[0].ID, SelectedOptionID: optID(12)},
		{SessionQuestionID: sqs[1].ID, SelectedOptionID: nil},
	})
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}

	state, err := svc.GetState(ctx, 1, resp.SessionID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}

	if state.Status != model.SessionStatusInProgress {
		t.Fatalf("status = %s, want in_progress", state.Status)
	}
	if state.TotalQuestions != 3 {
		t.Fatalf("total questions = %d, want 3", state.TotalQuestions)
	}
	// The cleared answer does not count as answered.
	if state.AnsweredCount != 1 {
		t.Fatalf("answered count = %d, want 1", state.AnsweredCount)
	}
	if state.RemainingSeconds <= 0 || state.RemainingSeconds > 30*60 {
		t.Fatalf("remaining seconds = %f, want within (0, 1800]", state.RemainingSeconds)
	}
}

func TestGetStateTerminalSessionHasNoCountdown(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 2})
	if _, err := svc.Submit(ctx, 1, resp.SessionID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	state, err := svc.GetState(ctx, 1, resp.SessionID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Status != model.SessionStatusSubmitted {
		t.Fatalf("status = %s, want submitted", state.Status)
	}
	if state.RemainingSeconds != 0 {
		t.Fatalf("remaining seconds = %f, want 0", state.RemainingSeconds)
	}
}

func TestGetStatePastDeadlineClampsToZero(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	resp := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 2})
	store.sessions[resp.SessionID].EndsAt = time.Now().UTC().Add(-time.Minute)

	state, err := svc.GetState(ctx, 1, resp.SessionID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	// Expiry is lazy: the stored status still reads in_progress until a
	// submit or sweep finalizes it.
	if state.Status != model.SessionStatusInProgress {
		t.Fatalf("status = %s, want in_progress", state.Status)
	}
	if state.RemainingSeconds != 0 {
		t.Fatalf("remaining seconds = %f, want 0", state.RemainingSeconds)
	}
}

func TestSweepExpired(t *testing.T) {
	store := newMemStore(bankQuestions()...)
	svc := newTestService(store)
	ctx := context.Background()

	expired := startSession(t, svc, 1, model.StartExamRequest{NumQuestions: 3})
	active := startSession(t, svc, 2, model.StartExamRequest{NumQuestions: 3})
	store.sessions[expired.SessionID].EndsAt = time.Now().UTC().Add(-time.Minute)

	sqs, _ := store.QuestionsBySession(ctx, expired.SessionID)
	byQuestion := make(map[int64]int64, len(sqs))
	for _, sq := range sqs {
		byQuestion[sq.QuestionID] = sq.ID
	}
	err := svc.Autosave(ctx, 1, expired.SessionID, []model.AnswerSave{
		{SessionQuestionID: byQuestion[3], SelectedOptionID: optID(31)},
	})
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}

	swept, err := svc.SweepExpired(ctx, 100)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	s, _ := store.GetByID(ctx, expired.SessionID)
	if s.Status != model.SessionStatusAutoSubmitted {
		t.Fatalf("expired session status = %s, want auto_submitted", s.Status)
	}
	if s.Score == nil || *s.Score != 2 {
		t.Fatalf("expired session score = %v, want 2 from saved answers", s.Score)
	}

	a, _ := store.GetByID(ctx, active.SessionID)
	if a.Status != model.SessionStatusInProgress {
		t.Fatalf("active session status = %s, want in_progress", a.Status)
	}
}
