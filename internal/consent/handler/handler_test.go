package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"kanon/internal/auditchain"
	"kanon/internal/consent"
)

// HandlerSuite exercises the consent endpoints against a real in-memory
// service.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	audit, err := auditchain.NewService(auditchain.NewInMemoryStore(), auditchain.WithLogger(logger))
	require.NoError(s.T(), err)

	svc, err := consent.NewService(consent.NewInMemoryStore(), audit, consent.WithLogger(logger))
	require.NoError(s.T(), err)

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) grant() (string, string) {
	consentID := uuid.NewString()
	subjectID := uuid.NewString()
	rec := s.do(http.MethodPost, "/consent/grant", GrantRequest{
		ConsentID:     consentID,
		DataSubjectID: subjectID,
		Purpose:       "discovery",
		TTLSeconds:    3600,
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code)
	return consentID, subjectID
}

func (s *HandlerSuite) TestGrant() {
	s.Run("valid grant returns the contract", func() {
		consentID, subjectID := s.grant()

		rec := s.do(http.MethodGet, "/consent/"+consentID, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp RecordResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(consentID, resp.ConsentID)
		s.Equal(subjectID, resp.DataSubjectID)
		s.Equal(string(consent.StatusGranted), resp.Status)
		s.NotNil(resp.ExpiresAt)
	})

	s.Run("missing purpose", func() {
		rec := s.do(http.MethodPost, "/consent/grant", GrantRequest{
			ConsentID:     uuid.NewString(),
			DataSubjectID: uuid.NewString(),
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("duplicate grant conflicts", func() {
		consentID, subjectID := s.grant()
		rec := s.do(http.MethodPost, "/consent/grant", GrantRequest{
			ConsentID:     consentID,
			DataSubjectID: subjectID,
			Purpose:       "discovery",
		})
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestRevoke() {
	consentID, _ := s.grant()

	rec := s.do(http.MethodPost, "/consent/"+consentID+"/revoke", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp RecordResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(string(consent.StatusRevoked), resp.Status)
	s.NotNil(resp.RevokedAt)

	s.Run("second revocation conflicts", func() {
		rec := s.do(http.MethodPost, "/consent/"+consentID+"/revoke", nil)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("unknown contract", func() {
		rec := s.do(http.MethodPost, "/consent/"+uuid.NewString()+"/revoke", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestListBySubject() {
	_, subjectID := s.grant()
	_, _ = s.grant()

	rec := s.do(http.MethodGet, "/consent/subjects/"+subjectID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var records []RecordResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&records))
	s.Require().Len(records, 1)
	s.Equal(subjectID, records[0].DataSubjectID)
}
