package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classattend/internal/activity"
	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/cloudinary"
	"classattend/internal/dashboard"
	"classattend/internal/facematch"
	"classattend/internal/schedule"
	"classattend/internal/session"
)

var t0 = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

type fakeSessions struct {
	mu      sync.Mutex
	current map[string]*session.Session
}

func (f *fakeSessions) Put(_ context.Context, s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current[s.ClassName] = s
	return nil
}

func (f *fakeSessions) Current(_ context.Context, class string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current[class], nil
}

func (f *fakeSessions) Clear(_ context.Context, class string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.current, class)
	return nil
}

type fakeRecords struct {
	mu         sync.Mutex
	records    []attendance.Record
	lastFilter attendance.Filter
}

func (f *fakeRecords) InsertRecord(_ context.Context, rec attendance.Record) (attendance.Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if rec.SessionID != "" && r.StudentID == rec.StudentID && r.SessionID == rec.SessionID {
			return r, false, nil
		}
	}
	rec.ID = fmt.Sprintf("rec-%d", len(f.records)+1)
	f.records = append(f.records, rec)
	return rec, true, nil
}

func (f *fakeRecords) ListRecords(_ context.Context, flt attendance.Filter) ([]attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = flt
	var out []attendance.Record
	for _, r := range f.records {
		if flt.StudentID == "" || r.StudentID == flt.StudentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) FaceCandidates(context.Context) ([]facematch.Candidate, error) {
	return []facematch.Candidate{{UserID: "stu-7", FullName: "Grace"}}, nil
}

type fakeSummaries struct {
	classID, studentID string
}

func (f *fakeSummaries) Get(_ context.Context, classID, studentID string) (dashboard.Summary, error) {
	f.classID, f.studentID = classID, studentID
	return dashboard.Summarize(classID, studentID, map[attendance.Status]int{attendance.StatusPresent: 3, attendance.StatusAbsent: 1}), nil
}

type fakeActivities struct {
	items []activity.Activity
}

func (f *fakeActivities) Create(_ context.Context, a activity.Activity) (activity.Activity, error) {
	if err := a.Normalize(); err != nil {
		return activity.Activity{}, err
	}
	a.ID = fmt.Sprintf("act-%d", len(f.items)+1)
	a.CreatedAt = t0
	f.items = append(f.items, a)
	return a, nil
}

func (f *fakeActivities) List(context.Context, int) ([]activity.Activity, error) {
	return f.items, nil
}

type fakeSchedule struct {
	entries []schedule.Entry
	lastDay time.Time
	err     error
}

func (f *fakeSchedule) Create(_ context.Context, e schedule.Entry) (schedule.Entry, error) {
	if err := e.Normalize(); err != nil {
		return schedule.Entry{}, err
	}
	e.ID = fmt.Sprintf("slot-%d", len(f.entries)+1)
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeSchedule) Day(_ context.Context, day time.Time) ([]schedule.Entry, error) {
	f.lastDay = day
	return f.entries, f.err
}

type fakeProfiles struct {
	roles    map[string]string
	pictures map[string]string
}

func (f *fakeProfiles) UpsertProfile(_ context.Context, userID, _, role string) error {
	f.roles[userID] = role
	return nil
}

func (f *fakeProfiles) SetProfilePicture(_ context.Context, userID, url string) error {
	f.pictures[userID] = url
	return nil
}

type fakeUploader struct{}

func (fakeUploader) UploadProfilePicture(_ context.Context, userID string, _ []byte, _ string) (*cloudinary.UploadResult, error) {
	return &cloudinary.UploadResult{SecureURL: "https://res.example/" + userID + ".jpg"}, nil
}

func (fakeUploader) UploadProfilePictureBase64(_ context.Context, userID, _ string) (*cloudinary.UploadResult, error) {
	return &cloudinary.UploadResult{SecureURL: "https://res.example/" + userID + ".png"}, nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

type env struct {
	router     *gin.Engine
	now        *time.Time
	signer     *auth.Signer
	records    *fakeRecords
	summaries  *fakeSummaries
	profiles   *fakeProfiles
	activities *fakeActivities
	schedule   *fakeSchedule
}

func newEnv(t *testing.T, mutate func(*Deps)) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	now := t0
	clock := session.ClockFunc(func() time.Time { return now })

	e := &env{
		now:        &now,
		records:    &fakeRecords{},
		summaries:  &fakeSummaries{},
		profiles:   &fakeProfiles{roles: map[string]string{}, pictures: map[string]string{}},
		activities: &fakeActivities{},
		schedule:   &fakeSchedule{},
	}
	e.signer = auth.NewSigner("test-key", "classattend", 15*time.Minute, time.Hour)
	e.signer.Now = func() time.Time { return now }

	d := Deps{
		Sessions:   &fakeSessions{current: map[string]*session.Session{}},
		Issuer:     session.NewIssuer(session.NewManager(clock, nil)),
		Attendance: attendance.NewService(e.records, facematch.NewRandomMatcher(1), nil, clock),
		Records:    e.records,
		Summaries:  e.summaries,
		Activities: e.activities,
		Schedule:   e.schedule,
		Clock:      clock,
		Profiles:   e.profiles,
		Signer:     e.signer,
		Health: func(context.Context) map[string]bool {
			return map[string]bool{"db": true, "redis": true}
		},
	}
	if mutate != nil {
		mutate(&d)
	}
	e.router = NewRouter(d)
	return e
}

func (e *env) token(t *testing.T, subject, role string) string {
	t.Helper()
	tp, err := e.signer.Issue(subject, role)
	require.NoError(t, err)
	return tp.AccessToken
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSessionAndScanFlow(t *testing.T) {
	e := newEnv(t, nil)
	teacher := e.token(t, "t-1", auth.RoleTeacher)
	student := e.token(t, "stu-1", auth.RoleStudent)

	w := e.do(http.MethodPost, "/v1/sessions", teacher, gin.H{"class_name": "CS101", "ttl_minutes": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	issued := decode(t, w)
	assert.Equal(t, "CS101", issued["class_name"])
	assert.EqualValues(t, 300, issued["seconds_remaining"])
	assert.EqualValues(t, 5, issued["ttl_minutes"])
	payload := issued["payload"].(string)

	w = e.do(http.MethodGet, "/v1/sessions/CS101", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, issued["session_id"], decode(t, w)["session_id"])

	w = e.do(http.MethodGet, "/v1/sessions/CS101/qr.png", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	*e.now = t0.Add(2 * time.Minute)
	w = e.do(http.MethodPost, "/v1/attendance/scan", student, gin.H{"payload": payload, "class_name": "CS101"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["created"])

	w = e.do(http.MethodPost, "/v1/attendance/scan", student, gin.H{"payload": payload, "class_name": "CS101"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["created"])
	assert.Len(t, e.records.records, 1)
	assert.Equal(t, "stu-1", e.records.records[0].StudentID)

	w = e.do(http.MethodPost, "/v1/attendance/scan", student, gin.H{"payload": payload, "class_name": "Math201"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "CLASS_MISMATCH", body["reason"])
	assert.Equal(t, "QR does not match this class", body["error"])

	*e.now = t0.Add(301 * time.Second)
	w = e.do(http.MethodPost, "/v1/attendance/scan", e.token(t, "stu-2", auth.RoleStudent), gin.H{"payload": payload, "class_name": "CS101"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "EXPIRED", decode(t, w)["reason"])

	w = e.do(http.MethodGet, "/v1/sessions/CS101", teacher, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScanMalformed(t *testing.T) {
	e := newEnv(t, nil)
	w := e.do(http.MethodPost, "/v1/attendance/scan", e.token(t, "stu-1", auth.RoleStudent),
		gin.H{"payload": `{"type":"event","class":"CS101"}`, "class_name": "CS101"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "WRONG_TYPE", body["reason"])
	assert.Equal(t, "Invalid QR type", body["error"])
}

func TestReissueSupersedes(t *testing.T) {
	e := newEnv(t, nil)
	teacher := e.token(t, "t-1", auth.RoleTeacher)

	first := decode(t, e.do(http.MethodPost, "/v1/sessions", teacher, gin.H{"class_name": "CS101", "ttl_minutes": 5}))
	second := decode(t, e.do(http.MethodPost, "/v1/sessions", teacher, gin.H{"class_name": "CS101", "ttl_minutes": 10}))
	assert.NotEqual(t, first["session_id"], second["session_id"])

	current := decode(t, e.do(http.MethodGet, "/v1/sessions/CS101", teacher, nil))
	assert.Equal(t, second["session_id"], current["session_id"])
	assert.EqualValues(t, 600, current["seconds_remaining"])

	w := e.do(http.MethodDelete, "/v1/sessions/CS101", teacher, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(http.MethodGet, "/v1/sessions/CS101", teacher, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIssueSessionInput(t *testing.T) {
	e := newEnv(t, nil)
	teacher := e.token(t, "t-1", auth.RoleTeacher)

	w := e.do(http.MethodPost, "/v1/sessions", teacher, gin.H{"ttl_minutes": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/v1/sessions", teacher, gin.H{"class_name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/v1/sessions", teacher, gin.H{"class_name": "CS/101"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/v1/sessions", teacher, gin.H{"class_name": "CS101"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 5, decode(t, w)["ttl_minutes"], "absent ttl uses the default")

	ttls := []struct {
		in, want int
	}{
		{500, 60},
		{0, 1},
		{-5, 1},
		{1, 1},
		{60, 60},
	}
	for _, tt := range ttls {
		w = e.do(http.MethodPost, "/v1/sessions", teacher, gin.H{"class_name": "CS101", "ttl_minutes": tt.in})
		require.Equal(t, http.StatusCreated, w.Code, "ttl %d: %s", tt.in, w.Body.String())
		assert.EqualValues(t, tt.want, decode(t, w)["ttl_minutes"], "ttl %d", tt.in)
	}
}

func TestIssueSessionEnvironmentFault(t *testing.T) {
	e := newEnv(t, func(d *Deps) {
		d.Issuer = session.NewIssuer(session.NewManager(session.ClockFunc(func() time.Time { return t0 }), failingReader{}))
	})
	w := e.do(http.MethodPost, "/v1/sessions", e.token(t, "t-1", auth.RoleTeacher), gin.H{"class_name": "CS101"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoles(t *testing.T) {
	e := newEnv(t, nil)
	student := e.token(t, "stu-1", auth.RoleStudent)
	teacher := e.token(t, "t-1", auth.RoleTeacher)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/v1/sessions", "", gin.H{"class_name": "CS101"}).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/v1/sessions", "garbage", gin.H{"class_name": "CS101"}).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/v1/sessions", student, gin.H{"class_name": "CS101"}).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/v1/attendance/scan", teacher, gin.H{"payload": "x", "class_name": "CS101"}).Code)
}

func TestMarkFaceAndManual(t *testing.T) {
	e := newEnv(t, nil)
	teacher := e.token(t, "t-1", auth.RoleTeacher)

	w := e.do(http.MethodPost, "/v1/attendance/face", teacher, gin.H{"class_name": "CS101", "image_url": "https://img.example/cam.jpg"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "stu-7", e.records.records[0].StudentID)
	assert.Equal(t, attendance.MethodFaceRecognition, e.records.records[0].Method)

	w = e.do(http.MethodPost, "/v1/attendance/manual", teacher, gin.H{"student_id": "stu-3", "class_name": "CS101", "status": "late"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = e.do(http.MethodPost, "/v1/attendance/manual", teacher, gin.H{"student_id": "stu-3", "class_name": "CS101", "status": "asleep"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummaryScopesStudents(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(http.MethodGet, "/v1/attendance/summary?class_id=CS101&student_id=stu-2", e.token(t, "stu-1", auth.RoleStudent), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CS101", e.summaries.classID)
	assert.Equal(t, "stu-1", e.summaries.studentID)
	assert.EqualValues(t, 75, decode(t, w)["rate"])

	w = e.do(http.MethodGet, "/v1/attendance/summary?class_id=CS101&student_id=stu-2", e.token(t, "t-1", auth.RoleTeacher), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-2", e.summaries.studentID)
}

func TestTokenAndProfile(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(http.MethodPost, "/v1/auth/token", "", gin.H{"user_id": "u1", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/v1/auth/token", "", gin.H{"user_id": "stu-1", "role": "student", "full_name": "Ada"})
	require.Equal(t, http.StatusCreated, w.Code)
	tok := decode(t, w)["access_token"].(string)
	assert.Equal(t, "student", e.profiles.roles["stu-1"])

	w = e.do(http.MethodPost, "/v1/profile/picture", tok, gin.H{"data": "data:image/png;base64,AAAA"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	e = newEnv(t, func(d *Deps) { d.Uploads = fakeUploader{} })
	tok = e.token(t, "stu-1", auth.RoleStudent)
	w = e.do(http.MethodPost, "/v1/profile/picture", tok, gin.H{"data": "data:image/png;base64,AAAA"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://res.example/stu-1.png", e.profiles.pictures["stu-1"])

	w = e.do(http.MethodPost, "/v1/profile/picture", tok, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivities(t *testing.T) {
	e := newEnv(t, nil)
	teacher := e.token(t, "t-1", auth.RoleTeacher)
	student := e.token(t, "stu-1", auth.RoleStudent)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/v1/activities", student, gin.H{"title": "Lab"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/v1/activities", teacher, gin.H{}).Code)

	w := e.do(http.MethodPost, "/v1/activities", teacher, gin.H{"title": "Lab 1", "due_date": "2024-03-10T17:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.EqualValues(t, activity.DefaultMaxMarks, created["max_marks"])
	assert.Equal(t, "t-1", created["teacher_id"])

	w = e.do(http.MethodGet, "/v1/activities", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["activities"], 1)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, nil)
	w := e.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["db"])

	e = newEnv(t, func(d *Deps) {
		d.Health = func(context.Context) map[string]bool { return map[string]bool{"db": false, "redis": true} }
	})
	w = e.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestListRecordsScopesStudents(t *testing.T) {
	e := newEnv(t, nil)
	teacher := e.token(t, "t-1", auth.RoleTeacher)
	e.do(http.MethodPost, "/v1/attendance/manual", teacher, gin.H{"student_id": "stu-1", "class_name": "CS101", "status": "present"})
	e.do(http.MethodPost, "/v1/attendance/manual", teacher, gin.H{"student_id": "stu-2", "class_name": "CS101", "status": "absent"})

	w := e.do(http.MethodGet, "/v1/attendance/records?student_id=stu-2&limit=10", e.token(t, "stu-1", auth.RoleStudent), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["records"], 1)
	assert.Equal(t, "stu-1", e.records.lastFilter.StudentID)
	assert.Equal(t, 10, e.records.lastFilter.Limit)

	w = e.do(http.MethodGet, "/v1/attendance/records?class_id=CS101", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["records"], 2)
	assert.Equal(t, "CS101", e.records.lastFilter.ClassID)
}
