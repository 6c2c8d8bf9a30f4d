package fakeapi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/ctfclient/internal/models"
	"github.com/iudanet/ctfclient/internal/validation"
	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

// account хранит пользователя платформы вместе с секретами
type account struct {
	solved        map[int64]time.Time
	email         string
	username      string
	totpSecret    string
	pendingSecret string
	passwordHash  []byte
	id            int64
	team          int64
	tokenVersion  int
	totpStatus    int
	verified      bool
}

type teamRecord struct {
	name         string
	passwordHash []byte
	members      []int64
	id           int64
	owner        int64
}

// Platform is the in-memory state of the fake competition
type Platform struct {
	now        func() time.Time
	accounts   map[int64]*account
	byName     map[string]int64
	byEmail    map[string]int64
	pending    map[string]int64
	teams      map[int64]*teamRecord
	flags      map[int64]string
	countdowns map[string]time.Time
	catalog    models.Catalog
	bcryptCost int
	nextUser   int64
	nextTeam   int64
	mu         sync.Mutex
}

// NewPlatform создает пустую платформу с заданным каталогом
func NewPlatform(catalog models.Catalog, flags map[int64]string, now func() time.Time, bcryptCost int) *Platform {
	if now == nil {
		now = time.Now
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	p := &Platform{
		now:        now,
		accounts:   make(map[int64]*account),
		byName:     make(map[string]int64),
		byEmail:    make(map[string]int64),
		pending:    make(map[string]int64),
		teams:      make(map[int64]*teamRecord),
		flags:      make(map[int64]string, len(flags)),
		countdowns: make(map[string]time.Time),
		catalog:    catalog.Clone(),
		bcryptCost: bcryptCost,
	}
	for id, flag := range flags {
		p.flags[id] = flag
	}
	return p
}

// Register creates an unverified account and returns its email verification token
func (p *Platform) Register(req pkgapi.RegisterRequest) (string, error) {
	if validation.ValidateUsername(req.Username) != nil ||
		validation.ValidatePassword(req.Password) != nil ||
		validation.ValidateEmail(req.Email) != nil {
		return "", ErrBadRequest
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, taken := p.byName[nameKey(req.Username)]; taken {
		return "", ErrUsernameTaken
	}
	email := strings.ToLower(req.Email)
	if _, taken := p.byEmail[email]; taken {
		return "", ErrEmailTaken
	}

	p.nextUser++
	acc := &account{
		id:           p.nextUser,
		username:     req.Username,
		email:        email,
		passwordHash: hash,
		solved:       make(map[int64]time.Time),
	}
	p.accounts[acc.id] = acc
	p.byName[nameKey(acc.username)] = acc.id
	p.byEmail[email] = acc.id

	token := uuid.NewString()
	p.pending[token] = acc.id
	return token, nil
}

// VerifyEmail marks the account owning token as verified
func (p *Platform) VerifyEmail(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.pending[token]
	if !ok {
		return ErrBadVerification
	}
	delete(p.pending, token)
	p.accounts[id].verified = true
	return nil
}

// Login проверяет учетные данные и второй фактор.
// Возвращает ID, имя и текущую версию токенов аккаунта.
func (p *Platform) Login(req pkgapi.LoginRequest) (int64, string, int, error) {
	p.mu.Lock()
	id, ok := p.byName[nameKey(req.Username)]
	var hash []byte
	if ok {
		hash = p.accounts[id].passwordHash
	}
	p.mu.Unlock()

	if !ok {
		return 0, "", 0, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		return 0, "", 0, ErrBadCredentials
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc := p.accounts[id]
	if !acc.verified {
		return 0, "", 0, ErrEmailNotVerified
	}
	if acc.totpStatus == models.TOTPEnabled {
		if req.OTP == "" {
			return 0, "", 0, ErrTwoFactorRequired
		}
		if !validTOTP(acc.totpSecret, req.OTP, p.now()) {
			return 0, "", 0, ErrBadTwoFactor
		}
	}
	return acc.id, acc.username, acc.tokenVersion, nil
}

// TokenVersion returns the current token version of the account
func (p *Platform) TokenVersion(userID int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[userID]
	if !ok {
		return 0, ErrInvalidToken
	}
	return acc.tokenVersion, nil
}

// AddTwoFactor starts TOTP enrolment and returns the new secret.
// An enabled second factor stays active until the new secret is verified.
func (p *Platform) AddTwoFactor(userID int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	secret, err := newTOTPSecret(acc.username)
	if err != nil {
		return "", err
	}
	acc.pendingSecret = secret
	if acc.totpStatus == models.TOTPDisabled {
		acc.totpStatus = models.TOTPPending
	}
	return secret, nil
}

// VerifyTwoFactor подтверждает ожидающий секрет одноразовым кодом
func (p *Platform) VerifyTwoFactor(userID int64, otp string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	if acc.pendingSecret == "" {
		return false, ErrTwoFactorNotPended
	}
	if !validTOTP(acc.pendingSecret, otp, p.now()) {
		return false, nil
	}
	acc.totpSecret = acc.pendingSecret
	acc.pendingSecret = ""
	acc.totpStatus = models.TOTPEnabled
	return true, nil
}

// ChangePassword replaces the password after checking the old one
func (p *Platform) ChangePassword(userID int64, req pkgapi.ChangePasswordRequest) error {
	if validation.ValidatePassword(req.Password) != nil {
		return ErrBadRequest
	}

	p.mu.Lock()
	acc, ok := p.accounts[userID]
	var hash []byte
	if ok {
		hash = acc.passwordHash
	}
	p.mu.Unlock()

	if !ok {
		return ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(req.OldPassword)) != nil {
		return ErrBadCredentials
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	acc.passwordHash = newHash
	return nil
}

// ChangeUsername переименовывает пользователя
func (p *Platform) ChangeUsername(userID int64, username string) error {
	if validation.ValidateUsername(username) != nil {
		return ErrBadRequest
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[userID]
	if !ok {
		return ErrUserNotFound
	}
	if owner, taken := p.byName[nameKey(username)]; taken && owner != userID {
		return ErrUsernameTaken
	}
	delete(p.byName, nameKey(acc.username))
	acc.username = username
	p.byName[nameKey(username)] = userID
	return nil
}

// User returns the public view of an account, private adds the email
func (p *Platform) User(userID int64, private bool) (*models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := p.userLocked(acc)
	if private {
		user.Email = acc.email
	}
	return &user, nil
}

// TeamOf returns the team of the user
func (p *Platform) TeamOf(userID int64) (*models.Team, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if acc.team == 0 {
		return nil, ErrTeamNotFound
	}
	return p.teamLocked(p.teams[acc.team]), nil
}

// Team returns a team by ID
func (p *Platform) Team(teamID int64) (*models.Team, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	team, ok := p.teams[teamID]
	if !ok {
		return nil, ErrTeamNotFound
	}
	return p.teamLocked(team), nil
}

// CreateTeam создает команду, создатель становится владельцем
func (p *Platform) CreateTeam(userID int64, req pkgapi.TeamRequest) error {
	if validation.ValidateTeamName(req.Name) != nil || req.Password == "" {
		return ErrBadRequest
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash team password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[userID]
	if !ok {
		return ErrUserNotFound
	}
	if acc.team != 0 {
		return ErrAlreadyInTeam
	}
	if p.teamByNameLocked(req.Name) != nil {
		return ErrTeamNameTaken
	}

	p.nextTeam++
	team := &teamRecord{
		id:           p.nextTeam,
		name:         req.Name,
		passwordHash: hash,
		owner:        userID,
		members:      []int64{userID},
	}
	p.teams[team.id] = team
	acc.team = team.id
	return nil
}

// JoinTeam adds the user to an existing team
func (p *Platform) JoinTeam(userID int64, req pkgapi.TeamRequest) error {
	p.mu.Lock()
	acc, ok := p.accounts[userID]
	if !ok {
		p.mu.Unlock()
		return ErrUserNotFound
	}
	if acc.team != 0 {
		p.mu.Unlock()
		return ErrAlreadyInTeam
	}
	team := p.teamByNameLocked(req.Name)
	if team == nil {
		p.mu.Unlock()
		return ErrTeamNotFound
	}
	hash := team.passwordHash
	p.mu.Unlock()

	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		return ErrBadTeamPassword
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// за время сравнения пароля пользователь мог вступить в другую команду
	if acc.team != 0 {
		return ErrAlreadyInTeam
	}
	team.members = append(team.members, userID)
	acc.team = team.id
	return nil
}

// Catalog returns the challenge catalog with Solved flags for the user.
// A challenge counts as solved when the user or any teammate solved it.
func (p *Platform) Catalog(userID int64) (models.Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	catalog := p.catalog.Clone()
	for i := range catalog {
		for j := range catalog[i].Challenges {
			chal := &catalog[i].Challenges[j]
			chal.Solved = p.solvedLocked(acc, chal.ID)
		}
	}
	return catalog, nil
}

// Attempt проверяет флаг и засчитывает решение при совпадении
func (p *Platform) Attempt(userID, challengeID int64, flag string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	chal, _ := p.catalog.FindChallenge(challengeID)
	if chal == nil {
		return false, ErrChallengeNotFound
	}
	if !chal.Unlocked {
		return false, ErrChallengeLocked
	}
	if p.solvedLocked(acc, challengeID) {
		return false, ErrAlreadySolved
	}
	if flag == "" || flag != p.flags[challengeID] {
		return false, nil
	}
	acc.solved[challengeID] = p.now()
	return true, nil
}

// SetCountdown sets an event time, a zero time removes it
func (p *Platform) SetCountdown(name string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if at.IsZero() {
		delete(p.countdowns, name)
		return
	}
	p.countdowns[name] = at
}

// Countdown returns event times as fractional unix seconds, stamped with the server clock
func (p *Platform) Countdown() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]any, len(p.countdowns)+1)
	for name, at := range p.countdowns {
		out[name] = float64(at.UnixNano()) / float64(time.Second)
	}
	out[pkgapi.ServerTimestampKey] = p.now().UTC().Format(time.RFC3339Nano)
	return out
}

// EmailToken returns the pending verification token of a user, the way
// the verification email would deliver it
func (p *Platform) EmailToken(username string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byName[nameKey(username)]
	if !ok {
		return "", false
	}
	for token, owner := range p.pending {
		if owner == id {
			return token, true
		}
	}
	return "", false
}

// TOTPSecret returns the active or pending TOTP secret of a user
func (p *Platform) TOTPSecret(username string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byName[nameKey(username)]
	if !ok {
		return "", false
	}
	acc := p.accounts[id]
	if acc.pendingSecret != "" {
		return acc.pendingSecret, true
	}
	return acc.totpSecret, acc.totpSecret != ""
}

// RevokeSessions invalidates every token issued to the user
func (p *Platform) RevokeSessions(username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byName[nameKey(username)]
	if !ok {
		return ErrUserNotFound
	}
	p.accounts[id].tokenVersion++
	return nil
}

// SeedAccount creates a verified account, used for demo and test data
func (p *Platform) SeedAccount(username, password, email string) (int64, error) {
	token, err := p.Register(pkgapi.RegisterRequest{Username: username, Password: password, Email: email})
	if err != nil {
		return 0, fmt.Errorf("failed to seed %s: %w", username, err)
	}
	if err := p.VerifyEmail(token); err != nil {
		return 0, fmt.Errorf("failed to seed %s: %w", username, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byName[nameKey(username)], nil
}

func (p *Platform) userLocked(acc *account) models.User {
	user := models.User{
		ID:         acc.id,
		Username:   acc.username,
		Team:       acc.team,
		TOTPStatus: acc.totpStatus,
	}
	for id := range acc.solved {
		if chal, _ := p.catalog.FindChallenge(id); chal != nil {
			user.Points += chal.Score
		}
	}
	return user
}

func (p *Platform) teamLocked(team *teamRecord) *models.Team {
	out := &models.Team{
		ID:      team.id,
		Name:    team.name,
		Owner:   team.owner,
		Members: make([]models.User, 0, len(team.members)),
	}
	for _, id := range team.members {
		member := p.userLocked(p.accounts[id])
		out.Points += member.Points
		out.Members = append(out.Members, member)
	}
	sort.SliceStable(out.Members, func(i, j int) bool {
		return out.Members[i].ID < out.Members[j].ID
	})
	return out
}

func (p *Platform) teamByNameLocked(name string) *teamRecord {
	for _, team := range p.teams {
		if strings.EqualFold(team.name, name) {
			return team
		}
	}
	return nil
}

func (p *Platform) solvedLocked(acc *account, challengeID int64) bool {
	if _, ok := acc.solved[challengeID]; ok {
		return true
	}
	if acc.team == 0 {
		return false
	}
	for _, id := range p.teams[acc.team].members {
		if _, ok := p.accounts[id].solved[challengeID]; ok {
			return true
		}
	}
	return false
}

func nameKey(username string) string {
	return strings.ToLower(username)
}
