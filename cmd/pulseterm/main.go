// Command pulseterm is a terminal client for the Pulse check-in service.
// It opens a session over REST, attaches to the websocket stream, and lets
// the employee answer by typing or by voice (push-to-talk on Ctrl+R).
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/pulse/internal/protocol"
	"github.com/antoniostano/pulse/internal/reliability"
	"github.com/antoniostano/pulse/internal/session"
)

const (
	dialAttempts = 5
	dialBaseWait = 500 * time.Millisecond
	dialMaxWait  = 8 * time.Second
)

type client struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	speak     bool
	player    *player
	mic       *mic
	recording bool
	draft     string
	done      chan struct{}
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Pulse server base URL")
	userID := flag.String("user", "", "employee id (defaults to $USER)")
	speakReplies := flag.Bool("speak", false, "voice the bot replies through the speakers")
	useMic := flag.Bool("mic", true, "enable push-to-talk recording on Ctrl+R")
	flag.Parse()

	if strings.TrimSpace(*userID) == "" {
		*userID = os.Getenv("USER")
		if *userID == "" {
			*userID = "anonymous"
		}
	}

	snap, err := openSession(*serverURL, *userID)
	if err != nil {
		log.Fatalf("open session: %v", err)
	}
	if snap.Resumed {
		fmt.Println("* Conversation Resumed: you're continuing your previous conversation.")
	}
	for _, m := range snap.Messages {
		printMessage(m.IsUser, m.Content)
	}
	fmt.Printf("* %d questions remaining\n", snap.TurnsRemaining)

	conn, err := dialWS(*serverURL, snap.SessionID)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	c := &client{
		conn:      conn,
		sessionID: snap.SessionID,
		speak:     *speakReplies,
		player:    newPlayer(),
		done:      make(chan struct{}),
	}
	if *useMic {
		m, err := newMic(c.sendAudioChunk)
		if err != nil {
			log.Printf("microphone unavailable: %v (voice input disabled)", err)
		} else {
			c.mic = m
			defer m.Close()
			c.send(protocol.ClientControl{
				Type:      protocol.TypeClientControl,
				SessionID: snap.SessionID,
				Action:    protocol.ActionMicPermission,
				Value:     "granted",
			})
		}
	}

	go c.readLoop()
	c.inputLoop()
}

func openSession(serverURL, userID string) (session.Snapshot, error) {
	body, _ := json.Marshal(session.CreateRequest{UserID: userID})
	res, err := http.Post(strings.TrimRight(serverURL, "/")+"/v1/checkin/session", "application/json", bytes.NewReader(body))
	if err != nil {
		return session.Snapshot{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		return session.Snapshot{}, fmt.Errorf("server returned %s", res.Status)
	}
	var snap session.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		return session.Snapshot{}, err
	}
	return snap, nil
}

func dialWS(serverURL, sessionID string) (*websocket.Conn, error) {
	wsURL := strings.TrimRight(serverURL, "/") + "/v1/checkin/session/ws?session_id=" + sessionID
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(reliability.ExponentialBackoff(attempt, dialBaseWait, dialMaxWait))
		}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("connect attempt %d failed: %v", attempt+1, err)
	}
	return nil, lastErr
}

func (c *client) send(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		log.Printf("send: %v", err)
	}
}

func (c *client) sendAudioChunk(pcm []byte, seq, sampleRate int) {
	c.send(protocol.ClientAudioChunk{
		Type:        protocol.TypeClientAudioChunk,
		SessionID:   c.sessionID,
		Seq:         seq,
		PCM16Base64: base64.StdEncoding.EncodeToString(pcm),
		SampleRate:  sampleRate,
	})
}

func (c *client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case protocol.TypeBotMessage:
			var frame protocol.BotMessage
			if json.Unmarshal(data, &frame) != nil {
				continue
			}
			printMessage(false, frame.Message.Content)
			if c.speak {
				c.send(protocol.ClientControl{
					Type:      protocol.TypeClientControl,
					SessionID: c.sessionID,
					Action:    protocol.ActionSpeak,
					MessageID: frame.Message.ID,
				})
			}
		case protocol.TypeTurnResult:
			var frame protocol.TurnResult
			if json.Unmarshal(data, &frame) != nil {
				continue
			}
			if frame.Outcome == "ok" {
				fmt.Printf("* %d questions remaining\n", frame.TurnsRemaining)
			}
			if frame.Outcome == "failed" {
				fmt.Println("* message failed to send, your text was kept")
			}
		case protocol.TypeTranscription:
			var frame protocol.Transcription
			if json.Unmarshal(data, &frame) != nil {
				continue
			}
			if frame.Error != "" {
				fmt.Printf("* transcription failed: %s\n", frame.Error)
				continue
			}
			c.mu.Lock()
			c.draft = frame.Text
			c.mu.Unlock()
			fmt.Printf("* transcribed: %s (press Enter to send)\n", frame.Text)
		case protocol.TypePlaybackAudio:
			var frame protocol.PlaybackAudio
			if json.Unmarshal(data, &frame) != nil {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(frame.AudioBase64)
			if err != nil {
				continue
			}
			go func(messageID string) {
				if err := c.player.Play(audio, frame.Format); err != nil {
					log.Printf("playback: %v", err)
				}
				c.send(protocol.ClientControl{
					Type:      protocol.TypeClientControl,
					SessionID: c.sessionID,
					Action:    protocol.ActionSpeakDone,
					MessageID: messageID,
				})
			}(frame.MessageID)
		case protocol.TypeNotice:
			var frame protocol.Notice
			if json.Unmarshal(data, &frame) != nil {
				continue
			}
			fmt.Printf("* %s: %s\n", frame.Title, frame.Description)
		case protocol.TypeSessionEnded:
			fmt.Println("* conversation complete, goodbye")
			return
		case protocol.TypeErrorEvent:
			var frame protocol.ErrorEvent
			if json.Unmarshal(data, &frame) != nil {
				continue
			}
			fmt.Printf("* error (%s): %s\n", frame.Code, frame.Detail)
		}
	}
}

func (c *client) inputLoop() {
	if err := keyboard.Open(); err != nil {
		log.Fatalf("keyboard: %v", err)
	}
	defer keyboard.Close()

	fmt.Println("* type your answer and press Enter; Ctrl+R to talk; Esc to leave")

	var line []rune
	c.mu.Lock()
	if c.draft != "" {
		line = []rune(c.draft)
		fmt.Printf("> %s", c.draft)
	}
	c.mu.Unlock()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		char, key, err := keyboard.GetKey()
		if err != nil {
			return
		}
		switch key {
		case keyboard.KeyEsc:
			c.send(protocol.ClientControl{
				Type:      protocol.TypeClientControl,
				SessionID: c.sessionID,
				Action:    protocol.ActionEnd,
			})
			return
		case keyboard.KeyCtrlR:
			c.toggleRecording()
		case keyboard.KeyEnter:
			text := strings.TrimSpace(string(line))
			if text == "" {
				c.mu.Lock()
				text = strings.TrimSpace(c.draft)
				c.mu.Unlock()
			}
			if text == "" {
				continue
			}
			line = line[:0]
			c.mu.Lock()
			c.draft = ""
			c.mu.Unlock()
			fmt.Println()
			printMessage(true, text)
			c.send(protocol.ClientTurn{
				Type:      protocol.TypeClientTurn,
				SessionID: c.sessionID,
				Text:      text,
			})
		case keyboard.KeyBackspace, keyboard.KeyBackspace2:
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Print("\b \b")
			}
		case keyboard.KeySpace:
			line = append(line, ' ')
			fmt.Print(" ")
		default:
			if char != 0 {
				line = append(line, char)
				fmt.Printf("%c", char)
			}
		}
	}
}

func (c *client) toggleRecording() {
	if c.mic == nil {
		fmt.Println("* no microphone available")
		return
	}
	if !c.recording {
		c.send(protocol.ClientControl{
			Type:      protocol.TypeClientControl,
			SessionID: c.sessionID,
			Action:    protocol.ActionStartRecording,
		})
		if err := c.mic.Start(); err != nil {
			log.Printf("mic start: %v", err)
			return
		}
		c.recording = true
		fmt.Println("\n* recording... press Ctrl+R to stop")
		return
	}
	c.mic.Stop()
	c.send(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: c.sessionID,
		Action:    protocol.ActionStopRecording,
	})
	c.recording = false
	fmt.Println("\n* transcribing...")
}

func printMessage(isUser bool, content string) {
	if isUser {
		fmt.Printf("you> %s\n", content)
		return
	}
	fmt.Printf("pulse> %s\n", content)
}
