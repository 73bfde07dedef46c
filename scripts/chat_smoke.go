package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

// Manual smoke run against a locally running server. Walks the main flows:
// persona listing, anonymous chat, registered chat with history, streaming.

func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

func sendRequest(method, url, token string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{} // No timeout; local backends can be slow
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func main() {
	color.Cyan("🚀 Starting Chat Engine Smoke Test\n")

	// 1. Personas
	color.Yellow("\n[PUBLIC] 1. List Personas")
	resp, body, err := sendRequest("GET", "/chat/v1/personas", "", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var personaResp map[string]interface{}
	json.Unmarshal(body, &personaResp)
	prettyPrint(personaResp)

	// 2. Anonymous chat
	color.Yellow("\n[GUEST] 2. Send Anonymous Chat")
	resp, body, err = sendRequest("POST", "/chat/v1/send", "", map[string]interface{}{
		"chat":    "Explain what a goroutine is in one sentence.",
		"persona": "concise",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var sendResp map[string]interface{}
	json.Unmarshal(body, &sendResp)
	prettyPrint(sendResp)

	// 3. Register + Login
	color.Yellow("\n[AUTH] 3. Register & Login")
	email := fmt.Sprintf("smoke+%d@example.com", os.Getpid())
	sendRequest("POST", "/auth/register", "", map[string]interface{}{
		"full_name": "Smoke Tester",
		"email":     email,
		"password":  "smoke-password-1",
	})
	resp, body, err = sendRequest("POST", "/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": "smoke-password-1",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	json.Unmarshal(body, &loginResp)
	token := loginResp.Data.Token
	if token == "" {
		color.Red("No token in login response")
		os.Exit(1)
	}

	// 4. Registered chat, then continue the same thread
	color.Yellow("\n[USER] 4. Send Chat (new thread)")
	resp, body, _ = sendRequest("POST", "/chat/v1/send", token, map[string]interface{}{
		"chat":    "My name is Ada. Remember it.",
		"persona": "casual",
	})
	color.Green("Status: %s", resp.Status)
	var firstSend struct {
		Data struct {
			ThreadId string `json:"thread_id"`
		} `json:"data"`
	}
	json.Unmarshal(body, &firstSend)
	threadId := firstSend.Data.ThreadId
	color.Green("Thread: %s", threadId)

	color.Yellow("\n[USER] 5. Continue Thread (history check)")
	resp, body, _ = sendRequest("POST", "/chat/v1/send", token, map[string]interface{}{
		"chat":      "What is my name?",
		"persona":   "casual",
		"thread_id": threadId,
	})
	color.Green("Status: %s", resp.Status)
	var secondSend map[string]interface{}
	json.Unmarshal(body, &secondSend)
	prettyPrint(secondSend)

	// 6. Streaming
	color.Yellow("\n[USER] 6. Stream Chat")
	streamBody, _ := json.Marshal(map[string]interface{}{
		"chat":      "Count from one to five.",
		"persona":   "concise",
		"thread_id": threadId,
	})
	streamReq, _ := http.NewRequest("POST", baseURL+"/chat/v1/stream", bytes.NewBuffer(streamBody))
	streamReq.Header.Set("Content-Type", "application/json")
	streamReq.Header.Set("Authorization", "Bearer "+token)
	streamResp, err := (&http.Client{}).Do(streamReq)
	if err != nil {
		color.Red("Stream failed: %v", err)
		os.Exit(1)
	}
	scanner := bufio.NewScanner(streamResp.Body)
	for scanner.Scan() {
		var event map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		switch event["type"] {
		case "fragment":
			fmt.Print(event["text"])
		case "done":
			fmt.Println()
			color.Green("Done via tier: %v", event["tier"])
		case "error":
			color.Red("Stream error: %v", event["message"])
		}
	}
	streamResp.Body.Close()

	// 7. Thread listing
	color.Yellow("\n[USER] 7. List Threads")
	resp, body, _ = sendRequest("GET", "/chat/v1/threads", token, nil)
	color.Green("Status: %s", resp.Status)
	var threadsResp map[string]interface{}
	json.Unmarshal(body, &threadsResp)
	prettyPrint(threadsResp)

	color.Cyan("\n✅ Smoke test complete")
}
