package testutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/vanderheijden86/bugwork/pkg/bz"
)

// Bugzilla is an httptest server speaking the subset of the Bugzilla REST
// API bugwork uses, backed by a FakeService.
type Bugzilla struct {
	*httptest.Server
	Service *FakeService

	mu     sync.Mutex
	tokens []string
}

// NewBugzilla starts a fake server. Close it when done.
func NewBugzilla(svc *FakeService) *Bugzilla {
	b := &Bugzilla{Service: svc}

	r := mux.NewRouter()
	r.Use(b.captureToken)
	r.HandleFunc("/rest/login", b.login).Methods(http.MethodGet)
	r.HandleFunc("/rest/logout", b.logout).Methods(http.MethodGet)
	r.HandleFunc("/rest/valid_login", b.validLogin).Methods(http.MethodGet)
	r.HandleFunc("/rest/bug", b.search).Methods(http.MethodGet)
	r.HandleFunc("/rest/bug", b.createBug).Methods(http.MethodPost)
	r.HandleFunc("/rest/bug/{id}", b.getBug).Methods(http.MethodGet)
	r.HandleFunc("/rest/bug/{id}/comment", b.comments).Methods(http.MethodGet)
	r.HandleFunc("/rest/bug/{id}/attachment", b.attachments).Methods(http.MethodGet)
	r.HandleFunc("/rest/bug/{id}/attachment", b.createAttachment).Methods(http.MethodPost)

	b.Server = httptest.NewServer(r)
	return b
}

// Tokens returns the X-BUGZILLA-TOKEN header of every request, "" if unset.
func (b *Bugzilla) Tokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.tokens...)
}

func (b *Bugzilla) captureToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.tokens = append(b.tokens, r.Header.Get("X-BUGZILLA-TOKEN"))
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	var svcErr *bz.Error
	if errors.As(err, &svcErr) {
		status := svcErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{"error": true, "code": svcErr.Code, "message": svcErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": true, "code": 0, "message": err.Error()})
}

func bugID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil
}

func (b *Bugzilla) login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := b.Service.Login(r.Context(), bz.Credentials{Login: q.Get("login"), Password: q.Get("password")})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (b *Bugzilla) logout(w http.ResponseWriter, r *http.Request) {
	if err := b.Service.Logout(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (b *Bugzilla) validLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	err := b.Service.ValidLogin(r.Context(), bz.Credentials{Login: q.Get("login"), Token: q.Get("token")})
	if errors.Is(err, bz.ErrInvalidLogin) {
		writeJSON(w, http.StatusOK, map[string]any{"result": false})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": true})
}

func (b *Bugzilla) search(w http.ResponseWriter, r *http.Request) {
	res, err := b.Service.Search(r.Context(), r.URL.Query().Get("quicksearch"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (b *Bugzilla) createBug(w http.ResponseWriter, r *http.Request) {
	var nb bz.NewBug
	if err := json.NewDecoder(r.Body).Decode(&nb); err != nil {
		writeErr(w, &bz.Error{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}
	res, err := b.Service.CreateBug(r.Context(), nb)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (b *Bugzilla) getBug(w http.ResponseWriter, r *http.Request) {
	res, err := b.Service.GetBug(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (b *Bugzilla) comments(w http.ResponseWriter, r *http.Request) {
	id, ok := bugID(r)
	if !ok {
		writeErr(w, &bz.Error{Status: http.StatusBadRequest, Message: "invalid bug id"})
		return
	}
	comments, _ := b.Service.Comments(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{
		"bugs": map[string]any{strconv.Itoa(id): map[string]any{"comments": comments}},
	})
}

func (b *Bugzilla) attachments(w http.ResponseWriter, r *http.Request) {
	id, ok := bugID(r)
	if !ok {
		writeErr(w, &bz.Error{Status: http.StatusBadRequest, Message: "invalid bug id"})
		return
	}
	list, _ := b.Service.Attachments(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{"bugs": map[string]any{strconv.Itoa(id): list}})
}

func (b *Bugzilla) createAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := bugID(r)
	if !ok {
		writeErr(w, &bz.Error{Status: http.StatusBadRequest, Message: "invalid bug id"})
		return
	}
	var att bz.NewAttachment
	if err := json.NewDecoder(r.Body).Decode(&att); err != nil {
		writeErr(w, &bz.Error{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}
	if err := b.Service.CreateAttachment(r.Context(), id, att); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ids": []string{"1"}})
}
