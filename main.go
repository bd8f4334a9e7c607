package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/lqv/messenger/internal/auth"
	"github.com/lqv/messenger/internal/blob"
	"github.com/lqv/messenger/internal/convstore"
	"github.com/lqv/messenger/internal/directory"
	"github.com/lqv/messenger/internal/docstore"
	"github.com/lqv/messenger/internal/handlers"
	"github.com/lqv/messenger/internal/middleware"
	"github.com/lqv/messenger/internal/notify"
	"github.com/lqv/messenger/internal/ws"
)

var addr = flag.String("addr", ":8080", "http service address")

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Change notifications stay in-process unless a Redis address is
	// given, in which case watches see writes from every instance.
	var notifier notify.Notifier
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		r, err := notify.NewRedis(redisAddr)
		if err != nil {
			log.Fatal(err)
		}
		notifier = r
	}

	db, err := docstore.New(envOr("DB_PATH", "messenger.db"), notifier)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	users := directory.New(db)
	conversations := convstore.New(db)

	blobs, err := blob.New(envOr("BLOB_DIR", "blobs"), envOr("BASE_URL", "http://localhost:8080"))
	if err != nil {
		log.Fatal(err)
	}

	hub := ws.NewHub(conversations)
	go hub.Run()

	authHandler := &handlers.AuthHandler{Users: users, DB: db}
	convHandler := &handlers.ConversationHandler{Store: conversations, Users: users}
	blobHandler := &handlers.BlobHandler{Blobs: blobs}

	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	r.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/login", authHandler.Login).Methods("POST")

	api := r.NewRoute().Subrouter()
	api.Use(middleware.AuthMiddleware)
	api.HandleFunc("/users/search", authHandler.SearchUsers).Methods("GET")
	api.HandleFunc("/conversations", convHandler.StartConversation).Methods("POST")
	api.HandleFunc("/conversations", convHandler.GetConversations).Methods("GET")
	api.HandleFunc("/conversations/{id}/messages", convHandler.SendMessage).Methods("POST")
	api.HandleFunc("/conversations/{id}/messages", convHandler.GetMessages).Methods("GET")
	api.HandleFunc("/conversations/{id}", convHandler.DeleteConversation).Methods("DELETE")
	api.HandleFunc("/blobs/{category}", blobHandler.Upload).Methods("POST")

	r.HandleFunc("/blobs/resolve", blobHandler.Resolve).Methods("GET")
	r.HandleFunc("/blobs/{category}/{name}", blobHandler.Serve).Methods("GET")

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.CookieName)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userKey, err := auth.VerifyCookie(cookie.Value)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ws.ServeWs(hub, w, r, userKey)
	})

	log.Println("Starting server on", *addr)
	log.Fatal(http.ListenAndServe(*addr, r))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
