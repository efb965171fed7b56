package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
	"github.com/encasitacov19/CTI-PLATFORM/internal/store"
)

func TestExternalCode_PrefersMitreAttackReference(t *testing.T) {
	obj := stixObject{
		ExternalReferences: []externalReference{
			{SourceName: "capec", ExternalID: "CAPEC-1"},
			{SourceName: "mitre-attack", ExternalID: "T1059"},
		},
	}
	assert.Equal(t, "T1059", externalCode(obj))
}

func TestExternalCode_NoMitreReference(t *testing.T) {
	obj := stixObject{
		ExternalReferences: []externalReference{
			{SourceName: "capec", ExternalID: "CAPEC-1"},
		},
	}
	assert.Equal(t, "", externalCode(obj))
}

func TestTacticsString_DedupesAndSorts(t *testing.T) {
	obj := stixObject{
		KillChainPhases: []killChainPhase{
			{KillChainName: "mitre-attack", PhaseName: "Execution"},
			{KillChainName: "mitre-attack", PhaseName: "execution"},
			{KillChainName: "mitre-attack", PhaseName: "Defense-Evasion"},
			{KillChainName: "mitre-mobile-attack", PhaseName: "persistence"},
		},
	}
	assert.Equal(t, "defense-evasion,execution", tacticsString(obj))
}

func TestTacticsString_NoMitreAttackPhases(t *testing.T) {
	obj := stixObject{
		KillChainPhases: []killChainPhase{
			{KillChainName: "mitre-mobile-attack", PhaseName: "persistence"},
		},
	}
	assert.Equal(t, "", tacticsString(obj))
}

func TestFirstTactic_TakesFirstPhaseRegardlessOfChain(t *testing.T) {
	obj := stixObject{
		KillChainPhases: []killChainPhase{
			{KillChainName: "mitre-mobile-attack", PhaseName: "Persistence"},
			{KillChainName: "mitre-attack", PhaseName: "execution"},
		},
	}
	assert.Equal(t, "persistence", firstTactic(obj))
}

func TestFirstTactic_NoPhasesIsBlank(t *testing.T) {
	assert.Equal(t, "", firstTactic(stixObject{}))
}

type fakeStore struct {
	upserts  []model.Technique
	created  map[string]bool
	existing map[string]model.Technique
}

func (f *fakeStore) UpsertTechnique(ctx context.Context, t model.Technique) (bool, error) {
	f.upserts = append(f.upserts, t)
	return f.created[t.ExternalCode], nil
}

func (f *fakeStore) GetTechniqueByCode(ctx context.Context, code string) (model.Technique, error) {
	if t, ok := f.existing[code]; ok {
		return t, nil
	}
	return model.Technique{}, store.ErrNotFound
}

func stixServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

const legacyBody = `{
	"objects": [
		{"type": "attack-pattern", "name": "Phishing", "external_references": [{"source_name": "mitre-attack", "external_id": "T1566"}], "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "initial-access"}]},
		{"type": "attack-pattern", "name": "Already Known", "external_references": [{"source_name": "mitre-attack", "external_id": "T1003"}], "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "credential-access"}]}
	]
}`

const stixBody = `{
	"objects": [
		{"type": "attack-pattern", "name": "Phishing", "external_references": [{"source_name": "mitre-attack", "external_id": "T1566"}], "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "initial-access"}]},
		{"type": "attack-pattern", "name": "No Mitre Ref", "external_references": [{"source_name": "capec", "external_id": "CAPEC-9"}]},
		{"type": "malware", "name": "SomeMalware"},
		{"type": "attack-pattern", "name": "Command Execution", "external_references": [{"source_name": "mitre-attack", "external_id": "T1059"}], "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "execution"}]}
	]
}`

func TestSync_LegacyPhaseIsCreateOnly(t *testing.T) {
	legacySrv := stixServer(legacyBody)
	defer legacySrv.Close()
	stixSrv := stixServer(`{"objects": []}`)
	defer stixSrv.Close()

	fs := &fakeStore{
		created:  map[string]bool{},
		existing: map[string]model.Technique{"T1003": {ExternalCode: "T1003"}},
	}
	syncer := New(legacySrv.URL, stixSrv.URL, fs)

	res, err := syncer.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.LegacyTotal)
	assert.Equal(t, 1, res.LegacyCreated, "T1003 already exists and must not be re-inserted")
	require.Len(t, fs.upserts, 1)
	assert.Equal(t, "T1566", fs.upserts[0].ExternalCode)
	assert.Equal(t, "initial-access", fs.upserts[0].Tactics)
}

func TestSync_RunsBothPhasesAndAggregatesCounts(t *testing.T) {
	legacySrv := stixServer(legacyBody)
	defer legacySrv.Close()
	stixSrv := stixServer(stixBody)
	defer stixSrv.Close()

	fs := &fakeStore{
		created:  map[string]bool{"T1566": true, "T1003": true, "T1059": false},
		existing: map[string]model.Technique{},
	}
	syncer := New(legacySrv.URL, stixSrv.URL, fs)

	res, err := syncer.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.LegacyCreated)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Empty(t, res.FailedPhase)
	require.Len(t, fs.upserts, 4)
}

func TestSync_LegacyPhaseFailureNamesPhaseAndSkipsStixPhase(t *testing.T) {
	legacySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer legacySrv.Close()
	stixSrv := stixServer(stixBody)
	defer stixSrv.Close()

	fs := &fakeStore{created: map[string]bool{}, existing: map[string]model.Technique{}}
	syncer := New(legacySrv.URL, stixSrv.URL, fs)

	res, err := syncer.Sync(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "legacy_load", res.FailedPhase)
	assert.ErrorContains(t, err, "legacy_load")
	assert.Empty(t, fs.upserts)
}

func TestSync_StixPhaseFailureNamesPhaseButKeepsLegacyCounts(t *testing.T) {
	legacySrv := stixServer(legacyBody)
	defer legacySrv.Close()
	stixSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer stixSrv.Close()

	fs := &fakeStore{created: map[string]bool{}, existing: map[string]model.Technique{}}
	syncer := New(legacySrv.URL, stixSrv.URL, fs)

	res, err := syncer.Sync(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "stix_sync", res.FailedPhase)
	assert.Equal(t, 2, res.LegacyCreated)
	assert.ErrorContains(t, err, "stix_sync")
}

func TestSync_MalformedBodyReturnsDecodeError(t *testing.T) {
	legacySrv := stixServer(legacyBody)
	defer legacySrv.Close()
	stixSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer stixSrv.Close()

	fs := &fakeStore{created: map[string]bool{}, existing: map[string]model.Technique{}}
	syncer := New(legacySrv.URL, stixSrv.URL, fs)

	_, err := syncer.Sync(context.Background())
	assert.Error(t, err)
}
