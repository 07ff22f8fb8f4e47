// Package launch turns a resolved, fully installed version into the command
// that starts the game.
package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/fire-square/FireLaunch/internal/shellwords"
	"github.com/fire-square/FireLaunch/pkg/archive"
	"github.com/fire-square/FireLaunch/pkg/auth"
	"github.com/fire-square/FireLaunch/pkg/logging"
	"github.com/fire-square/FireLaunch/pkg/manifest"
	"github.com/fire-square/FireLaunch/pkg/resolver"
	"github.com/fire-square/FireLaunch/pkg/store"
)

const (
	DefaultLauncherName = "firelaunch"

	// FeatureCustomResolution is set in rule facts when a window size is given.
	FeatureCustomResolution = "has_custom_resolution"
)

// Legacy versions carry no JVM arguments of their own.
var defaultJVMArgs = []string{
	"-Djava.library.path=${natives_directory}",
	"-cp",
	"${classpath}",
}

// Options are the per-launch settings supplied by the user.
type Options struct {
	// GameDir is the working directory of the game. Defaults to the data root.
	GameDir string
	// JavaPath is an explicit java executable or command name.
	JavaPath string
	// JVMArgs come before the version's own JVM arguments, e.g. -Xmx4G.
	JVMArgs []string
	// GameArgs are appended after the version's game arguments.
	GameArgs []string
	Width    int
	Height   int

	LauncherName    string
	LauncherVersion string
	// Extra adds or overrides placeholder values.
	Extra map[string]string
	// Env is appended to the game's environment as KEY=VALUE pairs.
	Env []string
}

// AssemblerOptions configures an Assembler.
type AssemblerOptions struct {
	Logger hclog.Logger
	// LookPath overrides exec.LookPath when resolving java.
	LookPath func(string) (string, error)
}

// Assembler builds launch specs from resolved versions.
type Assembler struct {
	store    *store.Store
	creds    *auth.Adapter
	logger   hclog.Logger
	lookPath func(string) (string, error)
}

// NewAssembler returns an Assembler reading artifacts from st and
// credentials from creds.
func NewAssembler(st *store.Store, creds *auth.Adapter, opts AssemblerOptions) *Assembler {
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Assembler{
		store:    st,
		creds:    creds,
		logger:   logging.OrNull(opts.Logger).Named("launch"),
		lookPath: lookPath,
	}
}

// Assemble checks that every artifact of res is installed, extracts natives
// into a fresh directory and substitutes all argument placeholders.
func (a *Assembler) Assemble(ctx context.Context, res *resolver.Resolved, opts Options) (*Spec, error) {
	versionID := res.Version.ID
	a.logger.Debug("🧰 Assembling launch", "version", versionID)

	for _, ref := range res.Artifacts() {
		if outcome := a.store.Verify(ref); outcome != store.Valid {
			return nil, fmt.Errorf("%w: %s is %s", ErrIncompleteInstall, ref.Path, outcome)
		}
	}
	if res.Version.MainClass == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoMainClass, versionID)
	}

	java, err := findJava(opts.JavaPath, a.lookPath, a.logger)
	if err != nil {
		return nil, err
	}

	if a.creds == nil {
		return nil, fmt.Errorf("%w: no credential adapter", auth.ErrNoCredential)
	}
	cred, err := a.creds.Credential(ctx)
	if err != nil {
		return nil, err
	}

	l := a.store.Layout()
	gameDir := opts.GameDir
	if gameDir == "" {
		gameDir = l.Root()
	}
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: game directory: %v", store.ErrIOFailure, err)
	}

	gameAssets, err := a.gameAssets(ctx, res, gameDir)
	if err != nil {
		return nil, err
	}

	nativesDir := l.Natives(versionID, uuid.NewString())
	if err := a.extractNatives(ctx, res, nativesDir); err != nil {
		os.RemoveAll(nativesDir)
		return nil, err
	}

	var classpath []string
	for _, ref := range res.Classpath() {
		classpath = append(classpath, a.store.Path(ref))
	}
	separator := string(os.PathListSeparator)

	assetsIndex := res.AssetIndexID
	if assetsIndex == "" {
		assetsIndex = res.Version.Assets
	}
	versionType := res.Version.Type
	if versionType == "" {
		versionType = "release"
	}
	userType := cred.UserType
	if userType == "" {
		userType = "msa"
	}
	launcherName := opts.LauncherName
	if launcherName == "" {
		launcherName = DefaultLauncherName
	}

	vars := map[string]string{
		"auth_player_name":    cred.Username,
		"auth_uuid":           cred.UUID,
		"auth_access_token":   cred.Token,
		"auth_session":        "token:" + cred.Token + ":" + cred.UUID,
		"user_type":           userType,
		"user_properties":     "{}",
		"version_name":        versionID,
		"version_type":        versionType,
		"game_directory":      gameDir,
		"assets_root":         l.AssetsRoot(),
		"game_assets":         gameAssets,
		"assets_index_name":   assetsIndex,
		"natives_directory":   nativesDir,
		"classpath":           strings.Join(classpath, separator),
		"classpath_separator": separator,
		"library_directory":   l.LibrariesRoot(),
		"launcher_name":       launcherName,
		"launcher_version":    opts.LauncherVersion,
	}
	if opts.Width > 0 && opts.Height > 0 {
		vars["resolution_width"] = strconv.Itoa(opts.Width)
		vars["resolution_height"] = strconv.Itoa(opts.Height)
	}
	for k, v := range opts.Extra {
		vars[k] = v
	}

	jvmTemplate, gameTemplate, err := a.templates(res, opts)
	if err != nil {
		os.RemoveAll(nativesDir)
		return nil, err
	}
	jvmArgs, err := substitute(jvmTemplate, vars)
	if err != nil {
		os.RemoveAll(nativesDir)
		return nil, err
	}
	gameArgs, err := substitute(gameTemplate, vars)
	if err != nil {
		os.RemoveAll(nativesDir)
		return nil, err
	}

	spec := &Spec{
		VersionID:  versionID,
		Java:       java,
		JVMArgs:    append(append([]string{}, opts.JVMArgs...), jvmArgs...),
		MainClass:  res.Version.MainClass,
		GameArgs:   append(gameArgs, opts.GameArgs...),
		Dir:        gameDir,
		Env:        opts.Env,
		NativesDir: nativesDir,
		Classpath:  classpath,
	}
	if cred.Token != "" {
		spec.secrets = []string{cred.Token}
	}

	a.logger.Info("🎮 Launch assembled",
		"version", versionID,
		"java", java,
		"classpath", len(classpath),
		"natives", nativesDir)
	a.logger.Trace("🎯 Command line", "command", spec.String())
	return spec, nil
}

// templates returns the unsubstituted JVM and game arguments of the version.
func (a *Assembler) templates(res *resolver.Resolved, opts Options) ([]string, []string, error) {
	facts := res.Facts
	if opts.Width > 0 && opts.Height > 0 {
		features := make(map[string]bool, len(facts.Features)+1)
		for k, v := range facts.Features {
			features[k] = v
		}
		features[FeatureCustomResolution] = true
		facts.Features = features
	}

	var jvm, game []string
	if args := res.Version.Arguments; args != nil {
		jvm = manifest.Flatten(args.JVM, facts)
		game = manifest.Flatten(args.Game, facts)
	}
	if res.Version.MinecraftArguments != "" {
		legacy, err := shellwords.Split(res.Version.MinecraftArguments)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: minecraftArguments: %v", resolver.ErrMalformedManifest, err)
		}
		game = append(legacy, game...)
	}
	if len(jvm) == 0 {
		jvm = defaultJVMArgs
	}
	return jvm, game, nil
}

func (a *Assembler) extractNatives(ctx context.Context, res *resolver.Resolved, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailure, err)
	}
	for _, lib := range res.Natives() {
		n, err := archive.Extract(ctx, a.store.Path(lib.Ref), dir, archive.Options{
			Exclude: lib.Exclude,
			Logger:  a.logger,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("%w: %s: %v", ErrExtractionFailure, lib.Name, err)
		}
		a.logger.Debug("📦 Extracted natives", "library", lib.Name, "files", n)
	}
	return nil
}

// gameAssets returns the directory passed as ${game_assets}. Legacy indexes
// expect objects under their logical names, so those are materialised first.
func (a *Assembler) gameAssets(ctx context.Context, res *resolver.Resolved, gameDir string) (string, error) {
	l := a.store.Layout()
	idx := res.Index
	if idx == nil || (!idx.Virtual && !idx.MapToResources) {
		return l.AssetsRoot(), nil
	}

	target := filepath.Join(l.AssetsRoot(), "virtual", res.AssetIndexID)
	if idx.MapToResources {
		target = filepath.Join(gameDir, "resources")
	}
	for name, obj := range idx.Objects {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		dst := filepath.Join(target, filepath.FromSlash(name))
		rel, err := filepath.Rel(target, dst)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("%w: asset name %q", resolver.ErrMalformedManifest, name)
		}
		if info, err := os.Stat(dst); err == nil && info.Size() == obj.Size {
			continue
		}
		src := l.Abs(layoutAssetObject(obj.Hash))
		if err := linkOrCopy(src, dst); err != nil {
			return "", fmt.Errorf("%w: materialising %s: %v", store.ErrIOFailure, name, err)
		}
	}
	a.logger.Debug("🗂️ Materialised legacy assets", "dir", target, "objects", len(idx.Objects))
	return target, nil
}
