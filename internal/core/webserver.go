package eradio

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	humanize "github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/simplesurance/go-ip-anonymizer/ipanonymizer"
	"github.com/toksikk/eradio/internal/cfg"
	"github.com/toksikk/eradio/internal/radio"
	"golang.org/x/oauth2"
)

const sessionName = "eradio-session"

//go:embed web/templates/*.html
var templateFS embed.FS

var (
	discordOauthConfig = &oauth2.Config{
		Scopes:   []string{"identify", "guilds"},
		Endpoint: endp,
	}
	endp = oauth2.Endpoint{
		AuthURL:  "https://discord.com/api/oauth2/authorize",
		TokenURL: "https://discord.com/api/oauth2/token",
	}
	tmpls = map[string]*template.Template{}

	cookieStore *sessions.CookieStore

	ipAnonymizer = ipanonymizer.NewWithMask(
		net.CIDRMask(16, 32),
		net.CIDRMask(64, 128),
	)

	// voiceGuildOf finds the guild in which a user sits in a voice channel.
	voiceGuildOf = findVoiceGuild
)

type pageData struct {
	Username string
	Sessions []sessionStatus
	Version  string
	Since    string
}

type nowPlayingEntry struct {
	sessionStatus
	Info  *radio.StationInfo `json:"info,omitempty"`
	Error string             `json:"error,omitempty"`
}

func newWebRouter(config *cfg.Config) (*mux.Router, error) {
	for _, page := range []string{"home.html", "internal.html"} {
		t, err := template.ParseFS(templateFS, "web/templates/header.html", "web/templates/footer.html", "web/templates/"+page)
		if err != nil {
			return nil, errors.Wrapf(err, "parse template %s", page)
		}
		tmpls[page] = t
	}

	secret := config.Web.SessionSecret
	if secret == "" {
		secret = config.Web.Oauth.ClientSecret
	}
	cookieStore = sessions.NewCookieStore([]byte(secret))
	// Lax keeps the cookie on the OAuth redirect back from discord.com but
	// drops it on cross-site POSTs to /play and /stop.
	cookieStore.Options.SameSite = http.SameSiteLaxMode
	cookieStore.Options.HttpOnly = true
	discordOauthConfig.ClientID = config.Web.Oauth.ClientID
	discordOauthConfig.ClientSecret = config.Web.Oauth.ClientSecret
	discordOauthConfig.RedirectURL = config.Web.Oauth.RedirectURI + "/discordCallback"

	r := mux.NewRouter()
	r.Use(logWebRequests)
	r.HandleFunc("/", handleMain).Methods(http.MethodGet)
	r.HandleFunc("/logout", handleLogout)
	r.HandleFunc("/discordLogin", handleDiscordLogin)
	r.HandleFunc("/discordCallback", handleDiscordCallback)
	r.HandleFunc("/play", handlePlay).Methods(http.MethodPost)
	r.HandleFunc("/stop", handleStop).Methods(http.MethodPost)
	r.HandleFunc("/nowplaying", handleNowPlaying).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	return r, nil
}

func startWebServer(config *cfg.Config) {
	r, err := newWebRouter(config)
	if err != nil {
		slog.Error("could not set up webserver", "error", err)
		return
	}
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(config.Web.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("could not start webserver", "error", err)
	}
}

func renderPage(w http.ResponseWriter, page string, data pageData) {
	data.Version = appVersion()
	data.Since = humanize.Time(startTime)
	for _, name := range []string{"header", "content", "footer"} {
		if err := tmpls[page].ExecuteTemplate(w, name, data); err != nil {
			slog.Error("unable to execute template", "page", page, "template", name, "error", err)
			return
		}
	}
}

func sessionUser(r *http.Request) (id string, name string, ok bool) {
	session, err := cookieStore.Get(r, sessionName)
	if err != nil {
		return "", "", false
	}
	id, _ = session.Values["discordUserID"].(string)
	name, _ = session.Values["discordUsername"].(string)
	return id, name, id != ""
}

func handleMain(w http.ResponseWriter, r *http.Request) {
	if _, name, ok := sessionUser(r); ok {
		renderPage(w, "internal.html", pageData{Username: name, Sessions: guilds.snapshot()})
		return
	}
	renderPage(w, "home.html", pageData{})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie := &http.Cookie{
		Name:   sessionName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}
	http.SetCookie(w, cookie)
	http.Redirect(w, r, "/", http.StatusFound)
}

func handleDiscordLogin(w http.ResponseWriter, r *http.Request) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		slog.Error("unable to read random state", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	state := base64.URLEncoding.EncodeToString(b)

	session, _ := cookieStore.Get(r, sessionName)
	session.Values["state"] = state
	if err := session.Save(r, w); err != nil {
		slog.Error("unable to save session", "error", err)
	}

	http.Redirect(w, r, discordOauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func handleDiscordCallback(w http.ResponseWriter, r *http.Request) {
	session, err := cookieStore.Get(r, sessionName)
	if err != nil {
		http.Error(w, "aborted", http.StatusBadRequest)
		return
	}
	if state, _ := session.Values["state"].(string); state == "" || r.URL.Query().Get("state") != state {
		http.Error(w, "no state match; possible csrf OR cookies not enabled", http.StatusBadRequest)
		return
	}

	token, err := discordOauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		slog.Warn("oauth code exchange failed", "error", err)
		http.Error(w, "Code exchange (could not get token) failed", http.StatusBadGateway)
		return
	}
	if !token.Valid() {
		http.Error(w, "retrieved invalid token", http.StatusBadGateway)
		return
	}

	dg, err := discordgo.New("Bearer " + token.AccessToken)
	if err != nil {
		slog.Error("Error while creating discord session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer dg.Close()

	user, err := dg.User("@me")
	if err != nil {
		slog.Warn("could not fetch oauth user", "error", err)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	delete(session.Values, "state")
	session.Values["discordUserID"] = user.ID
	session.Values["discordUsername"] = user.Username
	if err := session.Save(r, w); err != nil {
		slog.Error("unable to save session", "error", err)
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func findVoiceGuild(userID string) *discordgo.Guild {
	if discord == nil || discord.State == nil {
		return nil
	}
	discord.State.RLock()
	defer discord.State.RUnlock()
	for _, g := range discord.State.Guilds {
		for _, vs := range g.VoiceStates {
			if vs.UserID == userID {
				return g
			}
		}
	}
	return nil
}

// webGuildSession resolves the session of the guild the logged in user is
// currently listening in, answering the request itself on failure.
func webGuildSession(w http.ResponseWriter, r *http.Request) (*guildSession, *discordgo.Guild, bool) {
	userID, _, ok := sessionUser(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, nil, false
	}
	guild := voiceGuildOf(userID)
	if guild == nil {
		http.Error(w, "join a voice channel first", http.StatusNotFound)
		return nil, nil, false
	}
	g, err := guilds.get(guild.ID)
	if err != nil {
		slog.Error("could not load guild session", "guild", guild.ID, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, nil, false
	}
	return g, guild, true
}

func handlePlay(w http.ResponseWriter, r *http.Request) {
	g, guild, ok := webGuildSession(w, r)
	if !ok {
		return
	}
	commandsTotal.WithLabelValues(cmdPlay).Inc()
	reply, err := g.play(guild.Channels)
	if err != nil {
		slog.Error("web play failed", "guild", guild.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if reply == "" {
		reply = "Playback started."
	}
	fmt.Fprintln(w, reply)
}

func handleStop(w http.ResponseWriter, r *http.Request) {
	g, _, ok := webGuildSession(w, r)
	if !ok {
		return
	}
	commandsTotal.WithLabelValues(cmdStop).Inc()
	fmt.Fprintln(w, g.stop())
}

func handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := sessionUser(r); !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	statuses := guilds.snapshot()
	entries := make([]nowPlayingEntry, 0, len(statuses))
	for _, s := range statuses {
		entry := nowPlayingEntry{sessionStatus: s}
		if s.Playing {
			info, err := resolver.Resolve(r.Context(), s.StationURL)
			observeFetch(err)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Info = &info
			}
		}
		entries = append(entries, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		slog.Error("could not encode now playing", "error", err)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

func parseIPPort(s string) (ip net.IP, port, space string, err error) {
	ip = net.ParseIP(s)
	if ip == nil {
		var host string
		host, port, err = net.SplitHostPort(s)
		if err != nil {
			return
		}
		if port != "" {
			// This check only makes sense if service names are not allowed
			if _, err = strconv.ParseUint(port, 10, 16); err != nil {
				return
			}
		}
		ip = net.ParseIP(host)
	}
	if ip == nil {
		err = errors.New("invalid address format")
	} else {
		space = "IPv6"
		if ip4 := ip.To4(); ip4 != nil {
			space = "IPv4"
			ip = ip4
		}
	}
	return
}

func logWebRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, port, _, err := parseIPPort(r.RemoteAddr)
		if err != nil {
			slog.Warn("Error parsing IP address for WebUI Request", "uri", r.RequestURI, "error", err)
		} else if anonIP, err := ipAnonymizer.IPString(ip.String()); err != nil {
			slog.Warn("Could not anonymize IP address for WebUI Request", "uri", r.RequestURI, "error", err)
		} else {
			slog.Info("WebUI Request", "method", r.Method, "uri", r.RequestURI, "from", anonIP, "port", port)
		}
		next.ServeHTTP(w, r)
	})
}
