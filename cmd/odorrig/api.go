package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mastercactapus/odorrig/sequencer"
)

// Runner is the part of a sequencer the API exposes.
type Runner interface {
	Current() sequencer.Event
	Events() <-chan sequencer.Event
	Stop()
}

type api struct {
	http.Handler
	run     Runner
	dataDir string
	sse     *sse.Server
}

func newAPI(run Runner, g prometheus.Gatherer, dir string) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		run:     run,
		dataDir: dir,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(io.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/status", a.status).Methods("GET")
	r.HandleFunc("/api/estop", a.estop).Methods("POST")
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods("GET")
	r.PathPrefix("/events/").Handler(a.sse)
	r.PathPrefix("/data/").Handler(http.StripPrefix("/data", http.FileServer(http.Dir(dir)))).Methods("GET", "HEAD")

	go func() {
		for e := range run.Events() {
			data, err := json.Marshal(e)
			if err != nil {
				log.Printf("ERROR: marshal json: %+v", err)
				continue
			}
			a.sse.SendMessage("/events/state", sse.SimpleMessage(string(data)))
		}
	}()

	return a
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		log.Printf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
		h.ServeHTTP(w, req)
	})
}

func (a *api) status(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(a.run.Current())
	if err != nil {
		log.Println("ERROR: encode:", err)
	}
}

func (a *api) estop(w http.ResponseWriter, req *http.Request) {
	log.Println("Emergency stop requested by", req.RemoteAddr)
	a.run.Stop()
	w.WriteHeader(http.StatusAccepted)
}
