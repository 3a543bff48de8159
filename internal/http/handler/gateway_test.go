package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/basegraphhq/turnengine/internal/engine"
	"github.com/basegraphhq/turnengine/internal/http/handler"
)

type fakeInjector struct {
	enqueueFn func(ctx context.Context, sessionID string, inj engine.Injection) error
}

func (f *fakeInjector) Enqueue(ctx context.Context, sessionID string, inj engine.Injection) error {
	if f.enqueueFn != nil {
		return f.enqueueFn(ctx, sessionID, inj)
	}
	return nil
}

type fakeSessionRevoker struct {
	cancelFn func(ctx context.Context, workosSessionID string) error
}

func (f *fakeSessionRevoker) Cancel(ctx context.Context, workosSessionID string) error {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, workosSessionID)
	}
	return nil
}

var _ = Describe("InjectHandler", func() {
	var (
		router   *gin.Engine
		injector *fakeInjector
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		injector = &fakeInjector{}
		h := handler.NewInjectHandler(injector)
		router.POST("/inject", h.Send)
	})

	It("accepts a well-formed cancel injection", func() {
		var gotKind engine.InjectionKind
		injector.enqueueFn = func(_ context.Context, sessionID string, inj engine.Injection) error {
			gotKind = inj.Kind
			Expect(sessionID).To(Equal("session-1"))
			return nil
		}

		body, _ := json.Marshal(map[string]string{"session_id": "session-1", "kind": "cancel"})
		req := httptest.NewRequest(http.MethodPost, "/inject", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(gotKind).To(Equal(engine.InjectionKind("cancel")))
	})

	It("returns 409 when there is no active turn for the session", func() {
		injector.enqueueFn = func(_ context.Context, _ string, _ engine.Injection) error {
			return engine.ErrNoActiveTurn
		}

		body, _ := json.Marshal(map[string]string{"session_id": "session-1", "kind": "redirect", "message": "focus on X"})
		req := httptest.NewRequest(http.MethodPost, "/inject", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusConflict))
	})

	It("rejects a request missing session_id", func() {
		body, _ := json.Marshal(map[string]string{"kind": "cancel"})
		req := httptest.NewRequest(http.MethodPost, "/inject", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("InterventionHandler", func() {
	var (
		router   *gin.Engine
		sessions *fakeSessionRevoker
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		sessions = &fakeSessionRevoker{}
		h := handler.NewInterventionHandler(sessions)
		router.POST("/intervene/cancel", h.Cancel)
	})

	It("revokes the caller's workos session", func() {
		var got string
		sessions.cancelFn = func(_ context.Context, workosSessionID string) error {
			got = workosSessionID
			return nil
		}

		body, _ := json.Marshal(map[string]string{"workos_session_id": "wos-123"})
		req := httptest.NewRequest(http.MethodPost, "/intervene/cancel", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(got).To(Equal("wos-123"))
	})

	It("returns 500 when revocation fails", func() {
		sessions.cancelFn = func(_ context.Context, _ string) error {
			return context.DeadlineExceeded
		}

		body, _ := json.Marshal(map[string]string{"workos_session_id": "wos-123"})
		req := httptest.NewRequest(http.MethodPost, "/intervene/cancel", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
