package application

import (
	"drone-alert-system/internal/domain"
)

// AlertDocument перетворює тривогу на документну форму: мапу зі значеннями
// нативних типів (uuid, time), які нормалізуються серіалізатором
// безпосередньо перед записом у канал. Використовується для знімка
// initial_alerts; живі події несуть документи прямо з потоку змін.
func AlertDocument(a *domain.Alert) map[string]interface{} {
	location := map[string]interface{}{
		"lat": a.Location.Lat,
		"lng": a.Location.Lng,
	}
	if a.Location.Altitude != nil {
		location["altitude"] = *a.Location.Altitude
	}

	doc := map[string]interface{}{
		"id":             a.ID,
		"alert_type":     string(a.AlertType),
		"score":          a.Score,
		"location":       location,
		"drone_id":       a.DroneID,
		"created_at":     a.CreatedAt,
		"response":       a.Response,
		"image_received": a.ImageReceived,
		"status":         string(a.Status),
	}
	if len(a.Actions) > 0 {
		doc["actions"] = a.Actions
	}
	if a.Description != "" {
		doc["description"] = a.Description
	}
	if a.ImageURL != "" {
		doc["image_url"] = a.ImageURL
	}
	return doc
}
