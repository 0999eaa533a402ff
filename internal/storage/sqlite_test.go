package storage

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dshills/luacats-mcp/pkg/types"
)

type SQLiteSuite struct {
	suite.Suite
	ctx     context.Context
	storage *SQLiteStorage
	lib     *Library
	file    *File
}

func TestSQLiteSuite(t *testing.T) {
	suite.Run(t, new(SQLiteSuite))
}

func (s *SQLiteSuite) SetupTest() {
	s.ctx = context.Background()

	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	s.Require().NoError(err)
	s.storage = storage

	s.lib = &Library{RootPath: "/stubs", IndexVersion: CurrentSchemaVersion, Complete: true}
	s.Require().NoError(s.storage.CreateLibrary(s.ctx, s.lib))

	s.file = &File{
		LibraryID:   s.lib.ID,
		FilePath:    "string.lua",
		ContentHash: sha256.Sum256([]byte("content")),
		ModTime:     time.Now(),
		SizeBytes:   7,
		IsMeta:      true,
	}
	s.Require().NoError(s.storage.UpsertFile(s.ctx, s.file))
}

func (s *SQLiteSuite) TearDownTest() {
	s.NoError(s.storage.Close())
}

func (s *SQLiteSuite) sampleSignature(name, desc string) *Signature {
	return &Signature{
		FileID:      s.file.ID,
		Name:        name,
		View:        "function " + name + "(s, n)",
		TypeView:    "fun(s: string, n?: integer): string",
		Description: desc,
		Line:        10,
		Documented:  true,
		IsMeta:      true,
		Params: []Param{
			{Position: 0, Name: "s", Type: "string", Documented: true},
			{Position: 1, Name: "n", Type: "integer", Optional: true, Documented: true, Description: "count"},
		},
		Returns:  []Return{{Position: 0, Type: "string", Name: "result"}},
		Generics: []Generic{{Position: 0, Name: "T", Constraint: "table"}},
	}
}

func (s *SQLiteSuite) TestCreateLibrary_Duplicate() {
	err := s.storage.CreateLibrary(s.ctx, &Library{RootPath: "/stubs", IndexVersion: "1.1.0"})
	s.ErrorIs(err, ErrAlreadyExists)
}

func (s *SQLiteSuite) TestGetLibrary() {
	got, err := s.storage.GetLibrary(s.ctx, "/stubs")
	s.Require().NoError(err)
	s.Equal(s.lib.ID, got.ID)
	s.True(got.Complete)

	_, err = s.storage.GetLibrary(s.ctx, "/missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteSuite) TestUpdateLibrary() {
	s.lib.ScanID = "5c3f7b0e-0000-4000-8000-000000000000"
	s.lib.TotalFiles = 3
	s.lib.TotalSignatures = 12
	s.lib.Complete = false
	s.lib.LastIndexedAt = time.Now()
	s.Require().NoError(s.storage.UpdateLibrary(s.ctx, s.lib))

	got, err := s.storage.GetLibraryByID(s.ctx, s.lib.ID)
	s.Require().NoError(err)
	s.Equal(s.lib.ScanID, got.ScanID)
	s.Equal(3, got.TotalFiles)
	s.Equal(12, got.TotalSignatures)
	s.False(got.Complete)

	err = s.storage.UpdateLibrary(s.ctx, &Library{ID: 9999})
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteSuite) TestListLibraries() {
	s.Require().NoError(s.storage.CreateLibrary(s.ctx, &Library{RootPath: "/a", IndexVersion: "1.1.0"}))
	libs, err := s.storage.ListLibraries(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(libs, 2)
	s.Equal("/a", libs[0].RootPath)
}

func (s *SQLiteSuite) TestUpsertFile_Updates() {
	id := s.file.ID
	msg := "invalid utf-8"
	s.file.ContentHash = sha256.Sum256([]byte("changed"))
	s.file.ParseError = &msg
	s.Require().NoError(s.storage.UpsertFile(s.ctx, s.file))
	s.Equal(id, s.file.ID)

	got, err := s.storage.GetFile(s.ctx, s.lib.ID, "string.lua")
	s.Require().NoError(err)
	s.Equal(s.file.ContentHash, got.ContentHash)
	s.Require().NotNil(got.ParseError)
	s.Equal(msg, *got.ParseError)
	s.True(got.IsMeta)

	_, err = s.storage.GetFile(s.ctx, s.lib.ID, "other.lua")
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteSuite) TestSignatureRoundTrip() {
	sig := s.sampleSignature("string.rep", "Repeats a string.")
	s.Require().NoError(s.storage.InsertSignature(s.ctx, sig))
	s.Greater(sig.ID, int64(0))

	got, err := s.storage.GetSignature(s.ctx, s.lib.ID, "string.rep")
	s.Require().NoError(err)
	s.Equal("string.lua", got.FilePath)
	s.Equal(sig.TypeView, got.TypeView)
	s.Equal(sig.View, got.View)
	s.Equal(sig.Params, got.Params)
	s.Equal(sig.Returns, got.Returns)
	s.Equal(sig.Generics, got.Generics)
	s.True(got.IsMeta)

	byID, err := s.storage.GetSignatureByID(s.ctx, sig.ID)
	s.Require().NoError(err)
	s.Equal(got.Name, byID.Name)

	_, err = s.storage.GetSignature(s.ctx, s.lib.ID, "string.missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteSuite) TestInsertSignature_Duplicate() {
	s.Require().NoError(s.storage.InsertSignature(s.ctx, s.sampleSignature("f", "")))
	err := s.storage.InsertSignature(s.ctx, s.sampleSignature("f", ""))
	s.ErrorIs(err, ErrAlreadyExists)
}

func (s *SQLiteSuite) TestListSignatures_Filters() {
	for _, name := range []string{"string.rep", "string.sub", "print"} {
		s.Require().NoError(s.storage.InsertSignature(s.ctx, s.sampleSignature(name, "")))
	}
	undocumented := s.sampleSignature("raw", "")
	undocumented.Documented = false
	s.Require().NoError(s.storage.InsertSignature(s.ctx, undocumented))

	all, err := s.storage.ListSignatures(s.ctx, s.lib.ID, nil)
	s.Require().NoError(err)
	s.Len(all, 4)
	s.Len(all[0].Params, 2)

	prefixed, err := s.storage.ListSignatures(s.ctx, s.lib.ID, &SignatureFilters{Prefix: "string."})
	s.Require().NoError(err)
	s.Len(prefixed, 2)

	no := false
	raw, err := s.storage.ListSignatures(s.ctx, s.lib.ID, &SignatureFilters{Documented: &no})
	s.Require().NoError(err)
	s.Require().Len(raw, 1)
	s.Equal("raw", raw[0].Name)

	limited, err := s.storage.ListSignatures(s.ctx, s.lib.ID, &SignatureFilters{Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *SQLiteSuite) TestDeleteSignaturesByFile_Cascades() {
	sig := s.sampleSignature("string.rep", "")
	s.Require().NoError(s.storage.InsertSignature(s.ctx, sig))
	s.Require().NoError(s.storage.DeleteSignaturesByFile(s.ctx, s.file.ID))

	var params int
	s.Require().NoError(s.storage.db.QueryRow("SELECT COUNT(*) FROM params").Scan(&params))
	s.Zero(params)

	results, err := s.storage.SearchText(s.ctx, s.lib.ID, "rep", 10)
	s.Require().NoError(err)
	s.Empty(results)
}

func (s *SQLiteSuite) TestDeleteFile_Cascades() {
	s.Require().NoError(s.storage.InsertSignature(s.ctx, s.sampleSignature("f", "")))
	s.Require().NoError(s.storage.InsertAlias(s.ctx, &Alias{FileID: s.file.ID, Name: "Mode", Type: `"r"|"w"`, Line: 1}))
	s.Require().NoError(s.storage.DeleteFile(s.ctx, s.file.ID))

	sigs, err := s.storage.ListSignatures(s.ctx, s.lib.ID, nil)
	s.Require().NoError(err)
	s.Empty(sigs)
	aliases, err := s.storage.ListAliases(s.ctx, s.lib.ID)
	s.Require().NoError(err)
	s.Empty(aliases)
}

func (s *SQLiteSuite) TestAliases() {
	alias := &Alias{FileID: s.file.ID, Name: "Mode", Type: `"r"|"w"`, Description: "Open mode", Line: 3}
	s.Require().NoError(s.storage.InsertAlias(s.ctx, alias))
	s.ErrorIs(s.storage.InsertAlias(s.ctx, &Alias{FileID: s.file.ID, Name: "Mode", Type: "string", Line: 4}), ErrAlreadyExists)

	got, err := s.storage.GetAlias(s.ctx, s.lib.ID, "Mode")
	s.Require().NoError(err)
	s.Equal(`"r"|"w"`, got.Type)
	s.Equal("string.lua", got.FilePath)

	s.Require().NoError(s.storage.DeleteAliasesByFile(s.ctx, s.file.ID))
	_, err = s.storage.GetAlias(s.ctx, s.lib.ID, "Mode")
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteSuite) TestDiagnostics() {
	diags := []*Diagnostic{
		FromDiagnostic(types.Diagnostic{
			Severity: types.SeverityWarning,
			Kind:     types.DuplicateSymbolError,
			Message:  `duplicate definition of "f"`,
			Location: types.Location{File: "b.lua", Line: 5},
			Related:  &types.Location{File: "a.lua", Line: 2},
		}, 0),
		FromDiagnostic(types.Diagnostic{
			Severity: types.SeverityInfo,
			Kind:     types.PairingError,
			Message:  "undocumented",
			Location: types.Location{File: "a.lua", Line: 9},
		}, 0),
		FromDiagnostic(types.Diagnostic{
			Severity: types.SeverityError,
			Kind:     types.TypeParseError,
			Message:  "bad type",
			Location: types.Location{File: "a.lua", Line: 1, Column: 12},
		}, 0),
	}
	s.Require().NoError(s.storage.ReplaceDiagnostics(s.ctx, s.lib.ID, diags))

	all, err := s.storage.ListDiagnostics(s.ctx, s.lib.ID, nil)
	s.Require().NoError(err)
	s.Require().Len(all, 3)

	back, err := all[0].ToTypesDiagnostic()
	s.Require().NoError(err)
	s.Require().NotNil(back.Related)
	s.Equal("a.lua", back.Related.File)
	s.Equal(2, back.Related.Line)
	s.Equal(types.SeverityWarning, back.Severity)

	warnings, err := s.storage.ListDiagnostics(s.ctx, s.lib.ID, &DiagnosticFilters{MinSeverity: types.SeverityWarning})
	s.Require().NoError(err)
	s.Len(warnings, 2)

	inFile, err := s.storage.ListDiagnostics(s.ctx, s.lib.ID, &DiagnosticFilters{FilePath: "a.lua", Kinds: []string{"type_parse_error"}})
	s.Require().NoError(err)
	s.Require().Len(inFile, 1)
	s.Equal(12, inFile[0].Column)

	// replacing drops the previous set
	s.Require().NoError(s.storage.ReplaceDiagnostics(s.ctx, s.lib.ID, diags[:1]))
	all, err = s.storage.ListDiagnostics(s.ctx, s.lib.ID, nil)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *SQLiteSuite) TestSearchText() {
	s.Require().NoError(s.storage.InsertSignature(s.ctx, s.sampleSignature("string.format", "Formats values into a string.")))
	s.Require().NoError(s.storage.InsertSignature(s.ctx, s.sampleSignature("print", "Writes values to stdout.")))

	results, err := s.storage.SearchText(s.ctx, s.lib.ID, `"format"*`, 10)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Greater(results[0].BM25Score, 0.0)

	results, err = s.storage.SearchText(s.ctx, s.lib.ID, "values", 10)
	s.Require().NoError(err)
	s.Len(results, 2)

	other := &Library{RootPath: "/other", IndexVersion: "1.1.0"}
	s.Require().NoError(s.storage.CreateLibrary(s.ctx, other))
	results, err = s.storage.SearchText(s.ctx, other.ID, "values", 10)
	s.Require().NoError(err)
	s.Empty(results)
}

func (s *SQLiteSuite) TestGetStatus() {
	s.Require().NoError(s.storage.InsertSignature(s.ctx, s.sampleSignature("f", "")))
	s.Require().NoError(s.storage.InsertAlias(s.ctx, &Alias{FileID: s.file.ID, Name: "A", Type: "string", Line: 1}))
	s.Require().NoError(s.storage.ReplaceDiagnostics(s.ctx, s.lib.ID, []*Diagnostic{
		{Severity: "warning", Kind: "missing_param", Message: "m", FilePath: "string.lua", Line: 1},
	}))

	status, err := s.storage.GetStatus(s.ctx, s.lib.ID)
	s.Require().NoError(err)
	s.Equal(1, status.FilesCount)
	s.Equal(0, status.FailedFilesCount)
	s.Equal(1, status.SignaturesCount)
	s.Equal(1, status.AliasesCount)
	s.Equal(1, status.DiagnosticsCount["warning"])
	s.True(status.Health.DatabaseAccessible)

	_, err = s.storage.GetStatus(s.ctx, 9999)
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteSuite) TestBeginTx_CommitRollback() {
	tx, err := s.storage.BeginTx(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(tx.InsertSignature(s.ctx, s.sampleSignature("rolled", "")))
	s.Require().NoError(tx.Rollback())

	_, err = s.storage.GetSignature(s.ctx, s.lib.ID, "rolled")
	s.ErrorIs(err, ErrNotFound)

	tx, err = s.storage.BeginTx(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(tx.InsertSignature(s.ctx, s.sampleSignature("kept", "")))
	got, err := tx.GetSignature(s.ctx, s.lib.ID, "kept")
	s.Require().NoError(err)
	s.Len(got.Params, 2)
	s.Require().NoError(tx.Commit())

	_, err = s.storage.GetSignature(s.ctx, s.lib.ID, "kept")
	s.NoError(err)

	_, err = tx.BeginTx(s.ctx)
	s.Error(err)
}

func TestFromSignature(t *testing.T) {
	arena := types.NewArena()
	str := arena.Primitive("string")
	opt := arena.New(types.TypeOptional)
	opt.Inner = arena.Primitive("integer")

	sig := &types.Signature{
		Name:        "string.rep",
		File:        "string.lua",
		Description: "Repeats.",
		Documented:  true,
		Params: []types.Param{
			{Name: "s", Type: str, Documented: true},
			{Name: "n", Type: opt, Optional: true, Documented: true},
		},
		Returns:  []types.Return{{Type: str}},
		Location: types.Location{File: "string.lua", Line: 4},
		Declaration: types.Declaration{
			Name:       "string.rep",
			ParamNames: []string{"s", "n"},
		},
	}

	stored := FromSignature(sig, 7)
	assert.Equal(t, int64(7), stored.FileID)
	assert.Equal(t, "function string.rep(s, n)", stored.View)
	assert.Equal(t, "fun(s: string, n?: integer): string", stored.TypeView)
	require.Len(t, stored.Params, 2)
	assert.Equal(t, "integer", stored.Params[1].Type)
	assert.True(t, stored.Params[1].Optional)
	assert.Equal(t, 1, stored.Params[1].Position)

	res := stored.ToSearchResult(1, 0.5)
	assert.Equal(t, "string.lua", res.File.Path)
	assert.Equal(t, 4, res.File.Line)
}

func TestMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, ApplyMigrations(ctx, db))
	require.NoError(t, ApplyMigrations(ctx, db))

	v, err := currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, len(AllMigrations), count)
}

func TestRollbackMigration(t *testing.T) {
	ctx := context.Background()
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, ApplyMigrations(ctx, db))
	require.NoError(t, RollbackMigration(ctx, db))

	v, err := currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	// 1.1.0 is re-applied on the next run
	require.NoError(t, ApplyMigrations(ctx, db))
	v, err = currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v.String())
}
