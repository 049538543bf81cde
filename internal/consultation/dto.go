package consultation

import "time"

type QueueEntryResponse struct {
	ID                int64      `json:"id"`
	DoctorID          int64      `json:"doctorId"`
	PatientID         int64      `json:"patientId"`
	ConsultationID    int64      `json:"consultationId"`
	Position          *int       `json:"position"`
	JoinedAt          *time.Time `json:"joinedAt"`
	EstimatedWaitTime *int       `json:"estimatedWaitTime"`
	Status            string     `json:"status"`
	UrgencyLevel      string     `json:"urgencyLevel"`
	Priority          int        `json:"priority"`
}

type QueueResponse struct {
	DoctorID int64                `json:"doctorId"`
	Entries  []QueueEntryResponse `json:"entries"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}
