package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/palc/HmmUFOtu/cmd/util"
	"github.com/palc/HmmUFOtu/hmm"
	"github.com/palc/HmmUFOtu/seq"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve profile alignment as a JSON API",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringP("model", "m", "", "profile HMM file")
	serveCmd.Flags().StringP("addr", "a", ":8591", "listen address")

	rootCmd.AddCommand(serveCmd)
}

type alignRequest struct {
	ID  string `json:"id"`
	Seq string `json:"seq"`
}

type alignResponse struct {
	ID        string  `json:"id"`
	SeqStart  int     `json:"seq_start"`
	SeqEnd    int     `json:"seq_end"`
	HmmStart  int     `json:"hmm_start"`
	HmmEnd    int     `json:"hmm_end"`
	CSStart   int     `json:"cs_start"`
	CSEnd     int     `json:"cs_end"`
	Cost      float64 `json:"cost"`
	Alignment string  `json:"alignment"`
}

func runServe(cmd *cobra.Command, args []string) {
	model, _ := cmd.Flags().GetString("model")
	addr, _ := cmd.Flags().GetString("addr")
	if model == "" {
		util.Fatalf("serve needs --model")
	}
	h := util.ProfileRead(model)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/align", alignHandler(h))

	util.Warnf("Serving profile '%s' on %s.", h.Name, addr)
	util.Assert(http.ListenAndServe(addr, r), "Server stopped")
}

func alignHandler(h *hmm.HMM) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body alignRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		query, err := seq.NewPrimarySeq(body.ID, body.Seq, h.Abc())
		if err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}

		vs := hmm.NewViterbiScores(h, query.Length())
		h.CalcViterbiScores(query, vs)
		var vt hmm.ViterbiAlignTrace
		h.BuildViterbiTrace(vs, &vt)
		if !vt.Valid() {
			httpError(w, http.StatusUnprocessableEntity, "no alignment found")
			return
		}
		aln := h.BuildGlobalAlign(query, vs, &vt)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(alignResponse{
			ID:        body.ID,
			SeqStart:  aln.SeqStart,
			SeqEnd:    aln.SeqEnd,
			HmmStart:  aln.HmmStart,
			HmmEnd:    aln.HmmEnd,
			CSStart:   aln.CSStart,
			CSEnd:     aln.CSEnd,
			Cost:      aln.Cost,
			Alignment: aln.Align,
		})
	}
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
