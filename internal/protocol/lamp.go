package protocol

import "time"

// NormalizeLamp fills in the defaults the HTTP ingest path guarantees for a
// lamp payload. Field names are the device wire format and stay as-is.
func NormalizeLamp(fields map[string]any, now time.Time) map[string]any {
	return map[string]any{
		"id":                fields["id"],
		"latitude":          orDefault(fields["latitude"], 0.0),
		"longitude":         orDefault(fields["longitude"], 0.0),
		"etat":              orDefault(fields["etat"], "OK"),
		"batterie":          orDefault(fields["batterie"], 100.0),
		"led_status":        orDefault(fields["led_status"], false),
		"luminosite":        orDefault(fields["luminosite"], 0.0),
		"pir_detection":     orDefault(fields["pir_detection"], false),
		"lieu":              orDefault(fields["lieu"], ""),
		"derniere_remontee": orDefault(fields["derniere_remontee"], now.Format(time.RFC3339)),
		"synced":            true,
	}
}

// NormalizeAlert fills in the defaults for an alert payload received over HTTP.
func NormalizeAlert(fields map[string]any, now time.Time) map[string]any {
	return map[string]any{
		"lampadaire_id": fields["lampadaire_id"],
		"type":          fields["type"],
		"titre":         fields["titre"],
		"message":       fields["message"],
		"priorite":      orDefault(fields["priorite"], "moyenne"),
		"lieu":          fields["lieu"],
		"latitude":      fields["latitude"],
		"longitude":     fields["longitude"],
		"created_at":    now.Format(time.RFC3339),
	}
}

func orDefault(v, fallback any) any {
	if v == nil {
		return fallback
	}
	return v
}
