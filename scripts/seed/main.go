package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type loginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type importSummary struct {
	Data struct {
		Imported int      `json:"imported"`
		Skipped  int      `json:"skipped"`
		Errors   []string `json:"errors"`
	} `json:"data"`
}

func main() {
	var (
		base     string
		pin      string
		books    string
		students string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&pin, "pin", "", "Admin access PIN")
	flag.StringVar(&books, "books", "", "Path to a books CSV file")
	flag.StringVar(&students, "students", "", "Path to a students CSV file")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	if pin == "" {
		log.Fatal("missing -pin")
	}
	if books == "" && students == "" {
		log.Fatal("nothing to seed, pass -books and/or -students")
	}

	client := &http.Client{Timeout: timeout}

	token, err := login(client, base, pin)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	if books != "" {
		if err := upload(client, base+"/imports/books", token, books); err != nil {
			log.Fatalf("books import failed: %v", err)
		}
	}
	if students != "" {
		if err := upload(client, base+"/imports/students", token, students); err != nil {
			log.Fatalf("students import failed: %v", err)
		}
	}
}

func login(client *http.Client, base, pin string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"pin": pin})
	resp, err := client.Post(base+"/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Data.Token == "" {
		return "", fmt.Errorf("empty token in response")
	}
	return parsed.Data.Token, nil
}

func upload(client *http.Client, url, token, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var summary importSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return err
	}
	log.Printf("%s: imported=%d skipped=%d errors=%d", filepath.Base(path), summary.Data.Imported, summary.Data.Skipped, len(summary.Data.Errors))
	for _, msg := range summary.Data.Errors {
		log.Printf("  %s", msg)
	}
	return nil
}
