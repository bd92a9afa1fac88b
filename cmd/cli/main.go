package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hive-corporation/ioc-console/internal/adapter/httpclient"
)

type client struct {
	base  string
	http  *httpclient.ResilientClient
	token string
}

func main() {
	serverAddr := flag.String("server", "http://localhost:8080", "IoC console API address")
	username := flag.String("user", "analyst", "username")
	format := flag.String("format", "txt", "export format: txt, json or csv")
	out := flag.String("out", "", "output file (default: server-suggested name, - for stdout)")
	publish := flag.Bool("publish", false, "publish the export to object storage instead of downloading")
	flag.Parse()

	password := os.Getenv("IOC_PASSWORD")
	if password == "" {
		log.Fatal("❌ IOC_PASSWORD must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := &client{
		base: *serverAddr,
		http: httpclient.New(15*time.Second, httpclient.DefaultConfig("ioc-cli")),
	}

	if err := c.login(ctx, *username, password); err != nil {
		log.Fatalf("❌ login failed: %v", err)
	}
	defer c.logout(context.Background())

	if *publish {
		location, err := c.publish(ctx, *format)
		if err != nil {
			log.Fatalf("❌ publish failed: %v", err)
		}
		fmt.Printf("✅ export published to %s\n", location)
		return
	}

	name, body, err := c.export(ctx, *format)
	if err != nil {
		log.Fatalf("❌ export failed: %v", err)
	}

	target := *out
	if target == "" {
		target = name
	}
	if target == "-" {
		os.Stdout.Write(body)
		return
	}
	if err := os.WriteFile(target, body, 0o644); err != nil {
		log.Fatalf("❌ error writing %s: %v", target, err)
	}
	fmt.Printf("✅ wrote %d bytes to %s\n", len(body), target)
}

func (c *client) login(ctx context.Context, username, password string) error {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/auth/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	c.token = out.Token
	return nil
}

func (c *client) logout(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/auth/logout", nil)
	if err != nil {
		return
	}
	c.authorize(req)
	if resp, err := c.http.Do(req); err == nil {
		resp.Body.Close()
	}
}

func (c *client) export(ctx context.Context, format string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/api/v1/export?format="+url.QueryEscape(format), nil)
	if err != nil {
		return "", nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}

	name := "iocs." + format
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	fmt.Fprintf(os.Stderr, "📦 %s IoCs (%s approved, %s high/critical)\n",
		resp.Header.Get("X-Export-Total"), resp.Header.Get("X-Export-Approved"), resp.Header.Get("X-Export-High-Or-Critical"))
	return name, body, nil
}

func (c *client) publish(ctx context.Context, format string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/v1/export/publish?format="+url.QueryEscape(format), nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Location string `json:"location"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode publish response: %w", err)
	}
	return out.Location, nil
}

func (c *client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}
