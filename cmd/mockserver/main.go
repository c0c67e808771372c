// Command mockserver runs fake transcription and summarization endpoints
// for local development of the meeting assistant service.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

type segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

type transcribeResponse struct {
	Segments []segment `json:"segments"`
	Language string    `json:"language"`
}

type summaryRequest struct {
	Transcript  string `json:"transcript"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
}

type summaryResponse struct {
	Bullets  []string `json:"bullets"`
	Keywords []string `json:"keywords"`
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	windowSeq := r.FormValue("window_seq")
	duration, _ := strconv.ParseFloat(r.FormValue("duration"), 64)
	language := r.FormValue("language")
	if language == "" {
		language = "en"
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("transcription request: window_seq=%s duration=%.1fs file=%s size=%d language=%s",
		windowSeq, duration, header.Filename, len(audioData), language)

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	response := transcribeResponse{
		Language: language,
		Segments: []segment{
			{
				Start:      0,
				End:        duration / 2,
				Speaker:    "spk-1",
				Text:       fmt.Sprintf("Mock transcription for window %s, first half.", windowSeq),
				Confidence: 0.95,
			},
			{
				Start:      duration / 2,
				End:        duration,
				Speaker:    "spk-2",
				Text:       fmt.Sprintf("Mock transcription for window %s, second half.", windowSeq),
				Confidence: 0.91,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func summarizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Error parsing request", http.StatusBadRequest)
		return
	}

	log.Printf("summary request: span %s .. %s, transcript %d bytes",
		req.WindowStart, req.WindowEnd, len(req.Transcript))

	time.Sleep(300 * time.Millisecond)

	response := summaryResponse{
		Bullets: []string{
			"Mock summary bullet covering the discussed span.",
			"Action item generated by the mock summarizer.",
		},
		Keywords: []string{"mock", "meeting"},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func main() {
	port := flag.Int("port", 9000, "Port to listen on")
	flag.Parse()

	http.HandleFunc("/transcribe", transcribeHandler)
	http.HandleFunc("/summarize", summarizeHandler)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock provider server starting on %s", addr)
	log.Printf("Transcription endpoint: http://localhost%s/transcribe", addr)
	log.Printf("Summarization endpoint: http://localhost%s/summarize", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
