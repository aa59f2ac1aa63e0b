package clients

import (
	"context"
	"fmt"

	ws "microfinance-reports/internal/transport/websocket"
)

const (
	MessageExportProgress = "export_progress"
	MessageExportComplete = "export_complete"
	MessageExportFailed   = "export_failed"
)

// WebSocketClient pushes report export events to the user's open sockets.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{hub: hub}
}

func (c *WebSocketClient) send(userID int64, kind string, data map[string]interface{}) {
	if c.hub == nil {
		return
	}
	c.hub.Broadcast(userID, &ws.Message{
		Type:    kind,
		Channel: fmt.Sprintf("reports.%s#%d", kind, userID),
		Data:    data,
	})
}

func (c *WebSocketClient) NotifyExportProgress(_ context.Context, userID int64, exportID string, progress float64, stage string) error {
	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}
	c.send(userID, MessageExportProgress, data)
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(_ context.Context, userID int64, exportID string, url string, filename string) error {
	c.send(userID, MessageExportComplete, map[string]interface{}{
		"id":       exportID,
		"url":      url,
		"filename": filename,
		"user_id":  userID,
	})
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(_ context.Context, userID int64, exportID string, errMsg string) error {
	c.send(userID, MessageExportFailed, map[string]interface{}{
		"id":      exportID,
		"message": errMsg,
		"user_id": userID,
	})
	return nil
}
