// Stress tool: registers user pairs, opens websockets and exchanges
// private messages through the real server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	PairCount = 50 // Start small; raise once the database keeps up.
	MsgCount  = 20 // Messages per user
)

type AuthResponse struct {
	Token    string `json:"access_token"`
	Username string `json:"username"`
}

func main() {
	log.Printf("starting stress test: %d users, %d messages each", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	// Pairs: user_0_a talks to user_0_b, and so on.
	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("load test complete")
}

func runPair(pairID int) {
	userA := fmt.Sprintf("u_%d_a", pairID)
	userB := fmt.Sprintf("u_%d_b", pairID)
	pass := "password123"

	tokenA := authenticate(userA, pass)
	tokenB := authenticate(userB, pass)
	if tokenA == "" || tokenB == "" {
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamChat(&wsWg, tokenA, userA, userB)
	go spamChat(&wsWg, tokenB, userB, userA)
	wsWg.Wait()
}

// authenticate registers (ignoring already-exists) and logs in.
func authenticate(username, password string) string {
	postJSON("/register", map[string]string{"username": username, "password": password})

	resp, err := postJSON("/login", map[string]string{"username": username, "password": password})
	if err != nil {
		log.Printf("login failed [%s]: %v", username, err)
		return ""
	}
	defer resp.Body.Close()

	var data AuthResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.Token
}

func spamChat(wg *sync.WaitGroup, token, from, to string) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", WSURL, token), nil)
	if err != nil {
		log.Printf("ws connect failed [%s]: %v", from, err)
		return
	}
	defer conn.Close()

	// Drain inbound frames so the server never sees a full send queue.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < MsgCount; i++ {
		frame := map[string]string{
			"senderName":   from,
			"receiverName": to,
			"message":      fmt.Sprintf("loadtest msg %d from %s", i, from),
			"status":       "MESSAGE",
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("send failed [%s]: %v", from, err)
			break
		}
		// Small sleep to avoid an instant localhost bottleneck.
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("%s finished sending %d msgs", from, MsgCount)
}

func postJSON(endpoint string, data interface{}) (*http.Response, error) {
	jsonData, _ := json.Marshal(data)
	return http.Post(BaseURL+endpoint, "application/json", bytes.NewBuffer(jsonData))
}
