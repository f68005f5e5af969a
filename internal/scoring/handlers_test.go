package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/ewarisk/internal/contract"
	"github.com/mbd888/ewarisk/internal/model"
	"github.com/mbd888/ewarisk/internal/validation"
)

func setupRouter(t *testing.T, cl model.Classifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	h := NewHandler(newService(t, cl))
	h.RegisterRoutes(r.Group("/v1"))
	h.RegisterLegacyRoutes(r)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func scenarioBody(t *testing.T) string {
	t.Helper()
	body, err := json.Marshal(scenarioRequest())
	require.NoError(t, err)
	return string(body)
}

func TestPredict_OK(t *testing.T) {
	m, err := model.Default(contract.WithdrawalV1)
	require.NoError(t, err)
	r := setupRouter(t, m)

	for _, path := range []string{"/v1/predict", "/predict"} {
		t.Run(path, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, path, scenarioBody(t))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var got RiskAssessment
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, "emp-001", got.EmployeeID)
			assert.Equal(t, TierHigh, got.RiskLabel)
			assert.Greater(t, got.RiskScore, 0.6)
		})
	}
}

func TestPredict_ValidationErrorIs422(t *testing.T) {
	stub := newStub(t, 0.5)
	r := setupRouter(t, stub)

	w := doJSON(r, http.MethodPost, "/v1/predict",
		`{"employee_id":"e1","salary_monthly":-1,"tenure_days":3,"num_withdrawals_last_30d":0,`+
			`"num_withdrawals_last_90d":0,"avg_withdraw_amount":0,"avg_withdraw_pct_of_salary":0,`+
			`"last_withdraw_days_ago":null,"savings_balance":0,"other_loans":0,"department":"ops","job_level":"mid","extra":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Error   string                       `json:"error"`
		Details []validation.ValidationError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body.Error)
	require.Len(t, body.Details, 2)
	assert.Equal(t, "extra", body.Details[0].Field)
	assert.Equal(t, "salary_monthly", body.Details[1].Field)
	assert.Zero(t, stub.calls.Load())
}

func TestPredict_MalformedJSONIs400(t *testing.T) {
	r := setupRouter(t, newStub(t, 0.5))

	for _, body := range []string{`{"employee_id":`, ``, `[1]`, `{"employee_id":12}`} {
		w := doJSON(r, http.MethodPost, "/v1/predict", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.Contains(t, w.Body.String(), "invalid_request")
	}
}

func TestPredict_TooLarge(t *testing.T) {
	r := setupRouter(t, newStub(t, 0.5))
	big := `{"employee_id":"` + strings.Repeat("x", validation.MaxRequestSize) + `"}`

	w := doJSON(r, http.MethodPost, "/v1/predict", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPredict_ScoringFailureIs502(t *testing.T) {
	stub := newStub(t, 0)
	stub.err = errors.New("boom")
	r := setupRouter(t, stub)

	w := doJSON(r, http.MethodPost, "/v1/predict", scenarioBody(t))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "scoring_failed")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestPredictBatch(t *testing.T) {
	r := setupRouter(t, newStub(t, 0.7))

	bad := scenarioRequest()
	bad.EmployeeID = "emp-bad"
	delete(bad.Features, "savings_balance")
	payload, err := json.Marshal(BatchRequest{Requests: []Request{scenarioRequest(), bad}})
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost, "/v1/predict/batch", string(payload))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []BatchResult `json:"results"`
		Count   int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)

	assert.Equal(t, TierHigh, resp.Results[0].Assessment.RiskLabel)
	assert.Empty(t, resp.Results[0].Error)

	assert.Nil(t, resp.Results[1].Assessment)
	assert.Equal(t, "validation_failed", resp.Results[1].Error)
	require.Len(t, resp.Results[1].Details, 1)
	assert.Equal(t, "savings_balance", resp.Results[1].Details[0].Field)
}

func TestPredictBatch_Size(t *testing.T) {
	r := setupRouter(t, newStub(t, 0.7))

	w := doJSON(r, http.MethodPost, "/v1/predict/batch", `{"requests":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_batch_size")

	var buf bytes.Buffer
	buf.WriteString(`{"requests":[`)
	for i := 0; i <= MaxBatchSize; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"employee_id":"e"}`)
	}
	buf.WriteString(`]}`)
	w = doJSON(r, http.MethodPost, "/v1/predict/batch", buf.String())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetContract(t *testing.T) {
	r := setupRouter(t, newStub(t, 0.7))

	w := doJSON(r, http.MethodGet, "/v1/contract", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Contract   contract.Schema `json:"contract"`
		Model      string          `json:"model"`
		Thresholds Thresholds      `json:"thresholds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, contract.WithdrawalV1, resp.Contract.Version)
	assert.Len(t, resp.Contract.Fields, 11)
	assert.Equal(t, "stub", resp.Model)
	assert.Equal(t, DefaultThresholds(), resp.Thresholds)
}

func TestPredict_WithCreateTestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(newService(t, newStub(t, 0.1)))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/predict", strings.NewReader(scenarioBody(t)))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Predict(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"risk_label":"low"`)
}
