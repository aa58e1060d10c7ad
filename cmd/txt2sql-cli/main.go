// Package main provides an interactive terminal client for a running
// txt2sql server. It keeps one session for the whole conversation so
// follow-up questions can reference earlier answers.
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/saudata/txt2sql/pkg/models"
)

func main() {
	server := flag.String("server", "http://localhost:8090", "txt2sql server base URL")
	showSQL := flag.Bool("sql", false, "Print the executed SQL with each answer")
	flag.Parse()

	client := &http.Client{Timeout: 2 * time.Minute}

	fmt.Println("txt2sql — faça perguntas sobre os dados de internações (Ctrl+D para sair)")

	var sessionID string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "/quit" || question == "/exit" {
			break
		}

		result, err := ask(client, *server, question, sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "erro: %v\n", err)
			continue
		}
		sessionID = result.SessionID

		fmt.Println(result.Response)
		if *showSQL && result.SQLQuery != "" {
			fmt.Printf("  [sql] %s\n", result.SQLQuery)
		}
		fmt.Println()
	}
}

func ask(client *http.Client, server, question, sessionID string) (models.QueryResult, error) {
	body, err := json.Marshal(map[string]string{
		"question":   question,
		"session_id": sessionID,
	})
	if err != nil {
		return models.QueryResult{}, err
	}

	resp, err := client.Post(server+"/api/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return models.QueryResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return models.QueryResult{}, fmt.Errorf("server: %s", apiErr.Error)
		}
		return models.QueryResult{}, fmt.Errorf("server returned %s", resp.Status)
	}

	var result models.QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.QueryResult{}, err
	}
	return result, nil
}
