package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/bucketing"
	"github.com/aristath/creditrisk/internal/modules/classifier"
	"github.com/aristath/creditrisk/internal/modules/dataset"
	"github.com/aristath/creditrisk/internal/modules/model"
	"github.com/aristath/creditrisk/internal/modules/scoring"
	"github.com/aristath/creditrisk/internal/modules/training"
)

const applicantJSON = `{
	"person_age": 30,
	"person_income": 75000,
	"person_home_ownership": "MORTGAGE",
	"person_emp_length": 5,
	"loan_intent": "EDUCATION",
	"loan_grade": "A",
	"loan_amnt": 15000,
	"loan_int_rate": 7.5,
	"loan_percent_income": 0.2,
	"cb_person_default_on_file": "N",
	"cb_person_cred_hist_length": 5
}`

var (
	modelOnce sync.Once
	fitted    *model.TrainedModel
	fitErr    error
)

func trainedModel(t *testing.T) *model.TrainedModel {
	t.Helper()
	modelOnce.Do(func() {
		cfg := training.DefaultConfig()
		cfg.ClassifierVariant = classifier.VariantLogisticRegression
		trainer, err := training.NewTrainer(cfg, zerolog.Nop())
		if err != nil {
			fitErr = err
			return
		}
		result, err := trainer.Train(context.Background(), dataset.Generate(3000, 42))
		if err != nil {
			fitErr = err
			return
		}
		fitted = result.Model
	})
	require.NoError(t, fitErr)
	return fitted
}

func setupRouter(t *testing.T, m *model.TrainedModel) chi.Router {
	t.Helper()
	bucketizer, err := bucketing.New(bucketing.DefaultConfig())
	require.NoError(t, err)
	svc, err := scoring.NewService(m, bucketizer, scoring.DefaultOptions(), zerolog.Nop(), nil)
	require.NoError(t, err)

	router := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func withField(t *testing.T, key string, value interface{}) string {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(applicantJSON), &doc))
	if value == nil {
		delete(doc, key)
	} else {
		doc[key] = value
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(data)
}

func TestRegisterRoutes(t *testing.T) {
	router := setupRouter(t, nil)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/api/score"},
		{"POST", "/api/score/batch"},
		{"GET", "/api/score/schema"},
		{"GET", "/api/model"},
	}
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader(nil))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.NotEqual(t, http.StatusNotFound, w.Code, "route %s %s should be registered", tc.method, tc.path)
			assert.NotEqual(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}

func TestHandleScore(t *testing.T) {
	router := setupRouter(t, trainedModel(t))

	w := post(router, "/api/score", applicantJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var a scoring.Assessment
	require.NoError(t, json.NewDecoder(w.Body).Decode(&a))
	assert.Equal(t, domain.RiskTierLow, a.RiskTier)
	assert.Less(t, a.CalibratedPD, 0.20)
	assert.NotEmpty(t, a.ModelVersion)
}

func TestHandleScore_UnseenCategoryIsAccepted(t *testing.T) {
	router := setupRouter(t, trainedModel(t))

	w := post(router, "/api/score", withField(t, domain.FieldLoanIntent, "WEDDING"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var a scoring.Assessment
	require.NoError(t, json.NewDecoder(w.Body).Decode(&a))
	require.Len(t, a.UnseenCategories, 1)
	assert.Equal(t, "WEDDING", a.UnseenCategories[0].Value)
}

func TestHandleScore_BadRequests(t *testing.T) {
	router := setupRouter(t, trainedModel(t))

	tests := []struct {
		name       string
		body       string
		violations bool
	}{
		{"not json", "{", true},
		{"missing field", withField(t, domain.FieldIncome, nil), true},
		{"negative income", withField(t, domain.FieldIncome, -5), true},
		{"wrong type", withField(t, domain.FieldLoanGrade, 3), true},
		{"empty category", withField(t, domain.FieldHomeOwnership, ""), true},
		{"unknown property", withField(t, "favourite_colour", "blue"), true},
		{"zero age", withField(t, domain.FieldAge, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/api/score", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
			if tt.violations {
				assert.NotEmpty(t, body["violations"])
			}
		})
	}
}

func TestHandleScore_NoModel(t *testing.T) {
	router := setupRouter(t, nil)

	w := post(router, "/api/score", applicantJSON)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req := httptest.NewRequest("GET", "/api/model", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleScoreBatch(t *testing.T) {
	router := setupRouter(t, trainedModel(t))

	w := post(router, "/api/score/batch", "["+applicantJSON+","+withField(t, domain.FieldAge, 0)+"]")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Results []scoring.BatchItem `json:"results"`
		Count   int                 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
	assert.NotNil(t, body.Results[0].Assessment)
	assert.NotEmpty(t, body.Results[1].Error)

	w = post(router, "/api/score/batch", "[]")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(router, "/api/score/batch", applicantJSON)
	assert.Equal(t, http.StatusBadRequest, w.Code, "a single object is not a batch")
}

func TestHandleGetModel(t *testing.T) {
	m := trainedModel(t)
	router := setupRouter(t, m)

	req := httptest.NewRequest("GET", "/api/model", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var summary model.Summary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, m.Version, summary.Version)
	assert.Equal(t, classifier.VariantLogisticRegression, summary.Variant)
	assert.Equal(t, m.Dimension(), summary.Dimension)
	assert.Len(t, summary.Features, m.Dimension())
}

func TestHandleGetSchema(t *testing.T) {
	router := setupRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/score/schema", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var schema map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&schema))
	assert.Len(t, schema["required"], 11)
}

func TestHandleLive(t *testing.T) {
	server := httptest.NewServer(setupRouter(t, trainedModel(t)))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http")+"/api/score/live", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	exchange := func(payload string) LiveReply {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(payload)))
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var reply LiveReply
		require.NoError(t, json.Unmarshal(data, &reply))
		return reply
	}

	reply := exchange(applicantJSON)
	require.NotNil(t, reply.Assessment)
	assert.Equal(t, domain.RiskTierLow, reply.Assessment.RiskTier)

	reply = exchange(withField(t, domain.FieldIncome, nil))
	assert.Nil(t, reply.Assessment)
	assert.NotEmpty(t, reply.Violations)

	reply = exchange(withField(t, domain.FieldLoanPercentIncome, 0.6))
	require.NotNil(t, reply.Assessment, "the socket stays open after an invalid payload")
}
