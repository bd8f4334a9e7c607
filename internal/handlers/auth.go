package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/lqv/messenger/internal/auth"
	"github.com/lqv/messenger/internal/directory"
	"github.com/lqv/messenger/internal/docstore"
	"github.com/lqv/messenger/internal/identity"
	"github.com/lqv/messenger/internal/models"
)

type AuthHandler struct {
	Users *directory.Service
	DB    *docstore.Store
}

type credentialsDoc struct {
	PasswordHash string `json:"password_hash"`
}

// Credentials live outside the users/ tree so the stored profile and
// directory record shapes stay exactly as the mobile clients know them.
func credentialsPath(key string) string { return "credentials/" + key }

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	type SignupRequest struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.FirstName == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	key, err := h.Users.Register(r.Context(), models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if errors.Is(err, directory.ErrUserExists) {
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.DB.Set(r.Context(), credentialsPath(key), credentialsDoc{PasswordHash: string(hashedPassword)}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"key": key})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := identity.Canonicalize(creds.Email)

	var stored credentialsDoc
	if err := h.DB.Get(r.Context(), credentialsPath(key), &stored); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(creds.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	profile, err := h.Users.Profile(r.Context(), key)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:  auth.CookieName,
		Value: auth.SignCookie(key),
		Path:  "/",
	})

	json.NewEncoder(w).Encode(map[string]string{
		"key":  key,
		"name": profile.FirstName + " " + profile.LastName,
	})
}

func (h *AuthHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("q"))
	if query == "" {
		json.NewEncoder(w).Encode([]models.DirectoryEntry{})
		return
	}

	entries, err := h.Users.ListAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	matches := []models.DirectoryEntry{}
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Name), query) ||
			strings.Contains(strings.ToLower(entry.Email), query) {
			matches = append(matches, entry)
		}
	}

	json.NewEncoder(w).Encode(matches)
}
