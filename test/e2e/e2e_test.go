//go:build e2e

package e2e

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_Auth tests API key authentication
func TestE2E_Auth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	t.Run("tenant API key works", func(t *testing.T) {
		assert.Len(t, env.APIKey, 68) // llk_ prefix (4) + 32 bytes hex (64)

		_, err := env.Get("/knowledge", env.APIKey)
		require.NoError(t, err)
	})

	t.Run("missing key rejected", func(t *testing.T) {
		_, err := env.Get("/knowledge", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		_, err := env.Get("/knowledge", "llk_0000000000000000000000000000000000000000000000000000000000000000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

// TestE2E_KnowledgeLifecycle tests item creation, the ingestion pipeline,
// reprocessing and deletion
func TestE2E_KnowledgeLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	var itemID string

	t.Run("create inline item", func(t *testing.T) {
		resp, err := env.Post("/knowledge", map[string]string{
			"type":    "inline",
			"title":   "Return Policy",
			"content": "Customers may return any item within 30 days of purchase for a full refund.\n\nRefunds are issued to the original payment method within five business days. Items must be unused and in their original packaging to qualify for a refund.",
		}, env.APIKey)
		require.NoError(t, err)

		var item struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &item))
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, "pending", item.Status)
		itemID = item.ID
	})

	t.Run("pipeline brings item to ready", func(t *testing.T) {
		env.RunPipeline()

		resp, err := env.Get("/knowledge/"+itemID, env.APIKey)
		require.NoError(t, err)

		var item struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &item))
		assert.Equal(t, "ready", item.Status)

		var chunkCount int
		require.NoError(t, env.Pool.QueryRow(env.Ctx,
			"SELECT COUNT(*) FROM knowledge_chunks WHERE item_id = $1", itemID).Scan(&chunkCount))
		assert.Greater(t, chunkCount, 0)

		var embedded int
		require.NoError(t, env.Pool.QueryRow(env.Ctx,
			"SELECT COUNT(*) FROM knowledge_chunks WHERE item_id = $1 AND embedding IS NOT NULL", itemID).Scan(&embedded))
		assert.Equal(t, chunkCount, embedded)
	})

	t.Run("list shows the item", func(t *testing.T) {
		resp, err := env.Get("/knowledge", env.APIKey)
		require.NoError(t, err)

		var page struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
			HasMore bool `json:"has_more"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, itemID, page.Items[0].ID)
		assert.False(t, page.HasMore)
	})

	t.Run("reprocess re-runs the pipeline", func(t *testing.T) {
		_, err := env.Post("/knowledge/"+itemID+"/reprocess", map[string]string{}, env.APIKey)
		require.NoError(t, err)

		resp, err := env.Get("/knowledge/"+itemID, env.APIKey)
		require.NoError(t, err)

		var item struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &item))
		assert.Equal(t, "pending", item.Status)

		env.RunPipeline()

		resp, err = env.Get("/knowledge/"+itemID, env.APIKey)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(resp.Data, &item))
		assert.Equal(t, "ready", item.Status)
	})

	t.Run("delete removes item and chunks", func(t *testing.T) {
		_, err := env.Delete("/knowledge/"+itemID, env.APIKey)
		require.NoError(t, err)

		_, err = env.Get("/knowledge/"+itemID, env.APIKey)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")

		var chunkCount int
		require.NoError(t, env.Pool.QueryRow(env.Ctx,
			"SELECT COUNT(*) FROM knowledge_chunks WHERE item_id = $1", itemID).Scan(&chunkCount))
		assert.Equal(t, 0, chunkCount)
	})
}

// TestE2E_DocumentUpload tests the presigned upload flow
func TestE2E_DocumentUpload(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	resp, err := env.Post("/knowledge/uploads", map[string]string{
		"filename":     "faq.txt",
		"content_type": "text/plain",
	}, env.APIKey)
	require.NoError(t, err)

	var upload struct {
		UploadURL string `json:"upload_url"`
		FilePath  string `json:"file_path"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &upload))
	require.NotEmpty(t, upload.UploadURL)
	require.NotEmpty(t, upload.FilePath)

	content := []byte("Shipping is free on orders over fifty dollars.\n\nStandard delivery takes three to five business days anywhere in the continental United States.")
	require.NoError(t, env.UploadFile(upload.UploadURL, content, "text/plain"))

	createResp, err := env.Post("/knowledge", map[string]string{
		"type":      "document",
		"title":     "Shipping FAQ",
		"file_path": upload.FilePath,
	}, env.APIKey)
	require.NoError(t, err)

	var item struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(createResp.Data, &item))

	env.RunPipeline()

	getResp, err := env.Get("/knowledge/"+item.ID, env.APIKey)
	require.NoError(t, err)

	var got struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(getResp.Data, &got))
	assert.Equal(t, "ready", got.Status)
}

// TestE2E_ConversationAndLeads tests the widget chat flow with lead capture
func TestE2E_ConversationAndLeads(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	var convID string

	t.Run("start conversation", func(t *testing.T) {
		resp, err := env.Post("/widget/conversations", map[string]string{
			"session_id": "visitor-1",
		}, env.APIKey)
		require.NoError(t, err)

		var conv struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &conv))
		assert.NotEmpty(t, conv.ID)
		assert.Equal(t, "active", conv.Status)
		convID = conv.ID
	})

	t.Run("same session reuses the conversation", func(t *testing.T) {
		resp, err := env.Post("/widget/conversations", map[string]string{
			"session_id": "visitor-1",
		}, env.APIKey)
		require.NoError(t, err)

		var conv struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &conv))
		assert.Equal(t, convID, conv.ID)
	})

	t.Run("send message gets a reply", func(t *testing.T) {
		resp, err := env.Post("/widget/conversations/"+convID+"/messages", map[string]string{
			"content": "What are your pricing plans?",
		}, env.APIKey)
		require.NoError(t, err)

		var turn struct {
			Reply    string `json:"reply"`
			Fallback bool   `json:"fallback"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &turn))
		assert.NotEmpty(t, turn.Reply)
		assert.False(t, turn.Fallback)
	})

	t.Run("message with email captures a lead", func(t *testing.T) {
		_, err := env.Post("/widget/conversations/"+convID+"/messages", map[string]string{
			"content": "Sure, my name is Jordan Blake and my email is jordan@example.com. I'd love a demo.",
		}, env.APIKey)
		require.NoError(t, err)

		resp, err := env.Get("/leads", env.APIKey)
		require.NoError(t, err)

		var page struct {
			Leads []struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				Email  string `json:"email"`
				Score  int    `json:"score"`
				Status string `json:"status"`
			} `json:"leads"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.Len(t, page.Leads, 1)

		lead := page.Leads[0]
		assert.Equal(t, "jordan@example.com", lead.Email)
		assert.Equal(t, "Jordan Blake", lead.Name)
		assert.Equal(t, "new", lead.Status)
		assert.Greater(t, lead.Score, 0)
	})

	t.Run("history includes welcome and turns", func(t *testing.T) {
		resp, err := env.Get("/widget/conversations/"+convID+"/messages", env.APIKey)
		require.NoError(t, err)

		var messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &messages))
		require.GreaterOrEqual(t, len(messages), 5)
		assert.Equal(t, "assistant", messages[0].Role)
		assert.Equal(t, "Hi! How can I help?", messages[0].Content)
	})

	t.Run("usage reports tokens", func(t *testing.T) {
		resp, err := env.Get("/usage", env.APIKey)
		require.NoError(t, err)

		var usage struct {
			Tokens int64 `json:"tokens"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &usage))
		assert.Greater(t, usage.Tokens, int64(0))
	})

	t.Run("lead status and score management", func(t *testing.T) {
		listResp, err := env.Get("/leads", env.APIKey)
		require.NoError(t, err)

		var page struct {
			Leads []struct {
				ID    string `json:"id"`
				Score int    `json:"score"`
			} `json:"leads"`
		}
		require.NoError(t, json.Unmarshal(listResp.Data, &page))
		require.Len(t, page.Leads, 1)
		leadID := page.Leads[0].ID

		resp, err := env.Patch("/leads/"+leadID+"/status", map[string]string{
			"status": "contacted",
		}, env.APIKey)
		require.NoError(t, err)

		var lead struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &lead))
		assert.Equal(t, "contacted", lead.Status)

		scoreResp, err := env.Post("/leads/"+leadID+"/score", map[string]interface{}{
			"delta":  10,
			"reason": "manual review",
		}, env.APIKey)
		require.NoError(t, err)

		var scored struct {
			Score        int `json:"score"`
			ScoreHistory []struct {
				Reason string `json:"reason"`
			} `json:"score_history"`
		}
		require.NoError(t, json.Unmarshal(scoreResp.Data, &scored))
		assert.Equal(t, page.Leads[0].Score+10, scored.Score)
		require.NotEmpty(t, scored.ScoreHistory)
		assert.Equal(t, "manual review", scored.ScoreHistory[len(scored.ScoreHistory)-1].Reason)
	})

	t.Run("close conversation", func(t *testing.T) {
		_, err := env.Post("/widget/conversations/"+convID+"/close", map[string]string{}, env.APIKey)
		require.NoError(t, err)

		resp, err := env.Post("/widget/conversations", map[string]string{
			"session_id": "visitor-1",
		}, env.APIKey)
		require.NoError(t, err)

		var conv struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &conv))
		assert.NotEqual(t, convID, conv.ID)
	})
}
