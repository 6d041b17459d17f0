// Command simulation drives two board clients against a running server and
// shows how concurrent whole-document commits resolve.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"buddyboard-be/pkg/canvas"
	"buddyboard-be/pkg/collab"
	"buddyboard-be/pkg/geometry"
	"buddyboard-be/pkg/shape"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type peer struct {
	name   string
	userID string
	token  string
	client *collab.Client
	board  *collab.Board
}

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("base", "http://localhost:3000", "server base URL")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	flag.Parse()

	if *secret == "" {
		color.Red("JWT secret missing: pass -secret or set JWT_SECRET")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	alice := newPeer("alice", *secret)
	bob := newPeer("bob", *secret)

	color.Cyan("Creating a collaborative note as %s", alice.name)
	noteID, err := createNote(*baseURL, alice.token)
	if err != nil {
		fail("create note", err)
	}
	if err := addCollaborator(*baseURL, alice.token, noteID, bob.userID); err != nil {
		fail("add collaborator", err)
	}
	color.Green("Note %s shared with %s", noteID, bob.name)

	for _, p := range []*peer{alice, bob} {
		if err := p.open(ctx, *baseURL, noteID); err != nil {
			fail("open board for "+p.name, err)
		}
		defer p.close()
	}

	// 1. A single edit reaches the other peer.
	color.Yellow("\n[1] %s draws a rectangle", alice.name)
	alice.drawRect(0, 0)
	must(alice.board.Flush(ctx))
	time.Sleep(300 * time.Millisecond)
	report(alice, bob)

	// 2. Both peers commit before seeing each other's edit. Each snapshot
	// replaces the other's, and the store keeps whichever landed last.
	color.Yellow("\n[2] Both peers draw at the same time")
	alice.drawRect(100, 0)
	bob.drawRect(0, 100)
	must(alice.board.Flush(ctx))
	must(bob.board.Flush(ctx))
	time.Sleep(300 * time.Millisecond)
	report(alice, bob)

	store := collab.NewDocumentClient(*baseURL, alice.token)
	doc, err := store.LoadDocument(ctx, noteID)
	if err != nil {
		fail("reload", err)
	}
	color.Magenta("Stored document: %s", ids(doc.Shapes))
	color.Magenta("Conflict policy: %s", collab.ConflictPolicy)
}

func newPeer(name, secret string) *peer {
	userID := uuid.NewString()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		fail("sign token", err)
	}
	return &peer{name: name, userID: userID, token: token}
}

func (p *peer) open(ctx context.Context, baseURL, noteID string) error {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/api/board/v1/ws?token=" + url.QueryEscape(p.token)
	client, err := collab.Dial(ctx, wsURL, nil, nil)
	if err != nil {
		return err
	}
	n := 0
	board, err := collab.OpenBoard(ctx, collab.NewDocumentClient(baseURL, p.token), client, noteID, nil,
		canvas.WithIDSource(func() string {
			n++
			return fmt.Sprintf("%s-%d", p.name, n)
		}))
	if err != nil {
		_ = client.Close()
		return err
	}
	p.client, p.board = client, board
	return nil
}

func (p *peer) close() {
	p.board.Close()
	_ = p.client.Close()
}

func (p *peer) drawRect(x, y float64) {
	s := p.board.Session()
	must(s.PointerDown(canvas.ToolRect, geometry.Pt(x, y)))
	s.PointerMove(geometry.Pt(x+40, y+30))
	s.PointerUp(geometry.Pt(x+40, y+30))
}

func report(peers ...*peer) {
	for _, p := range peers {
		color.White("  %-6s sees %s", p.name, ids(p.board.Session().Shapes()))
	}
}

func ids(l shape.List) string {
	out := make([]string, 0, len(l))
	for _, s := range l {
		out = append(out, shape.ID(s))
	}
	return "[" + strings.Join(out, ", ") + "]"
}

func createNote(baseURL, token string) (string, error) {
	body, err := sendRequest(http.MethodPost, baseURL+"/api/note/v1", token, map[string]string{
		"title": "Simulation",
		"type":  "collaborative",
	})
	if err != nil {
		return "", err
	}
	var res struct {
		Data struct {
			Id string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", err
	}
	return res.Data.Id, nil
}

func addCollaborator(baseURL, token, noteID, userID string) error {
	_, err := sendRequest(http.MethodPost, baseURL+"/api/note/v1/"+noteID+"/collaborators", token, map[string]string{
		"userId": userID,
	})
	return err
}

func sendRequest(method, endpoint, token string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, endpoint, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %s: %s", method, endpoint, resp.Status, respBody)
	}
	return respBody, nil
}

func must(err error) {
	if err != nil {
		fail("step", err)
	}
}

func fail(what string, err error) {
	color.Red("%s failed: %v", what, err)
	os.Exit(1)
}
