package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// crawlResponse mirrors the gleaner API response model.
type crawlResponse struct {
	Result *struct {
		Success     bool              `json:"success"`
		Data        []json.RawMessage `json:"data"`
		NextPageURL string            `json:"next_page_url"`
		TotalItems  int               `json:"total_items"`
		Errors      []struct {
			Source  string `json:"source"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"result"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// validationResponse mirrors the gleaner validation response model.
type validationResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func main() {
	apiURL := os.Getenv("GLEANER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("GLEANER_API_KEY")

	s := server.NewMCPServer(
		"gleaner",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	crawlTool := mcp.NewTool("crawl_structured",
		mcp.WithDescription("Extract structured records from a website using a declarative crawl configuration (selectors, list-to-detail navigation, pagination). The configuration is a JSON object with start_url, extractors, and optional navigation/pagination blocks."),
		mcp.WithString("config",
			mcp.Required(),
			mcp.Description("The crawl configuration as a JSON object string"),
		),
	)
	s.AddTool(crawlTool, handleCrawl(apiURL, apiKey))

	validateTool := mcp.NewTool("validate_crawl_config",
		mcp.WithDescription("Validate a crawl configuration without executing it. Returns schema errors and warnings."),
		mcp.WithString("config",
			mcp.Required(),
			mcp.Description("The crawl configuration as a JSON object string"),
		),
	)
	s.AddTool(validateTool, handleValidate(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleCrawl(apiURL, apiKey string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawConfig, err := request.RequireString("config")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		body := []byte(`{"config":` + rawConfig + `}`)
		respBody, err := post(ctx, apiURL+"/api/v1/crawl", apiKey, body, 6*time.Minute)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp crawlResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("decode response: %v", err)), nil
		}
		if resp.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", resp.Error.Code, resp.Error.Message)), nil
		}

		pretty, err := json.MarshalIndent(resp.Result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(pretty)), nil
	}
}

func handleValidate(apiURL, apiKey string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawConfig, err := request.RequireString("config")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		respBody, err := post(ctx, apiURL+"/api/v1/validate", apiKey, []byte(rawConfig), 30*time.Second)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp validationResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("decode response: %v", err)), nil
		}

		pretty, _ := json.MarshalIndent(resp, "", "  ")
		return mcp.NewToolResultText(string(pretty)), nil
	}
}

// post sends a JSON request to the gleaner API and returns the body.
func post(ctx context.Context, url, apiKey string, body []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gleaner API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}
