package aggregate

import (
	"github.com/medihelp/carewire/internal/models"
	"github.com/medihelp/carewire/internal/store"
)

// Source names used by the dashboard presets.
const (
	SourceTriage        = "triage"
	SourceChat          = "chat"
	SourcePrescriptions = "prescriptions"
	SourceAppointments  = "appointments"
	SourcePatients      = "patients"
)

// PatientOverview declares the sources behind a patient's own dashboard:
// their triage history, prescriptions, and appointments.
func PatientOverview(patientID string) []SourceSpec {
	return []SourceSpec{
		{
			Name: SourceTriage,
			Query: store.Query{
				Collection: store.TriageSessions,
				Where:      []store.Cond{{Field: "patient_id", Value: patientID}},
				OrderBy:    &store.Order{Field: "created_at", Desc: true},
			},
			Dest: func() any { return &[]models.TriageSession{} },
		},
		{
			Name: SourcePrescriptions,
			Query: store.Query{
				Collection: store.Prescriptions,
				Where:      []store.Cond{{Field: "patient_id", Value: patientID}},
				OrderBy:    &store.Order{Field: "created_at", Desc: true},
			},
			Dest: func() any { return &[]models.Prescription{} },
		},
		{
			Name: SourceAppointments,
			Query: store.Query{
				Collection: store.Appointments,
				Where:      []store.Cond{{Field: "patient_id", Value: patientID}},
				OrderBy:    &store.Order{Field: "scheduled_at"},
			},
			Dest: func() any { return &[]models.Appointment{} },
		},
	}
}

// PatientDetail declares the sources behind a clinician's view of one
// patient: triage history, the live conversation with that clinician,
// and prescriptions.
func PatientDetail(doctorID, patientID string) []SourceSpec {
	return []SourceSpec{
		{
			Name: SourceTriage,
			Query: store.Query{
				Collection: store.TriageSessions,
				Where:      []store.Cond{{Field: "patient_id", Value: patientID}},
				OrderBy:    &store.Order{Field: "created_at", Desc: true},
			},
			Dest: func() any { return &[]models.TriageSession{} },
		},
		{
			Name: SourceChat,
			Query: store.Query{
				Collection: store.LiveMessages,
				Pair: &store.PairFilter{
					SenderField:   "sender_id",
					ReceiverField: "receiver_id",
					A:             doctorID,
					B:             patientID,
				},
				OrderBy: &store.Order{Field: "created_at"},
			},
			Dest: func() any { return &[]models.LiveMessage{} },
		},
		{
			Name: SourcePrescriptions,
			Query: store.Query{
				Collection: store.Prescriptions,
				Where:      []store.Cond{{Field: "patient_id", Value: patientID}},
				OrderBy:    &store.Order{Field: "created_at", Desc: true},
			},
			Dest: func() any { return &[]models.Prescription{} },
		},
	}
}

// DoctorRoster declares the sources behind a clinician's dashboard: the
// patient list and the clinician's appointments.
func DoctorRoster(doctorID string) []SourceSpec {
	return []SourceSpec{
		{
			Name: SourcePatients,
			Query: store.Query{
				Collection: store.Profiles,
				Where:      []store.Cond{{Field: "role", Value: models.RolePatient}},
				OrderBy:    &store.Order{Field: "name"},
			},
			Dest: func() any { return &[]models.Profile{} },
		},
		{
			Name: SourceAppointments,
			Query: store.Query{
				Collection: store.Appointments,
				Where:      []store.Cond{{Field: "doctor_id", Value: doctorID}},
				OrderBy:    &store.Order{Field: "scheduled_at"},
			},
			Dest: func() any { return &[]models.Appointment{} },
		},
	}
}

// AdminStats declares the counting reads behind the admin dashboard.
func AdminStats() map[string]store.Query {
	return map[string]store.Query{
		"patients": {
			Collection: store.Profiles,
			Where:      []store.Cond{{Field: "role", Value: models.RolePatient}},
		},
		"doctors": {
			Collection: store.Profiles,
			Where:      []store.Cond{{Field: "role", Value: models.RoleDoctor}},
		},
		"triage_sessions": {Collection: store.TriageSessions},
		"appointments":    {Collection: store.Appointments},
	}
}
