package plan

import (
	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/supabase"
	"github.com/raysh454/authprobe/internal/utils"
)

func init() {
	register(Builtin{
		Name:        "auth-debug",
		Description: "sign up, password sign-in and a REST read with the anon key",
		Build:       buildAuthDebug,
	})
	register(Builtin{
		Name:        "auth-users",
		Description: "list users with the service key, then sign up and request a magic link",
		Build:       buildAuthUsers,
	})
	register(Builtin{
		Name:        "create-user",
		Description: "create a confirmed user through the admin API and sign in as it",
		Build:       buildCreateUser,
	})
	register(Builtin{
		Name:        "admin-seed",
		Description: "list users, create an admin user with a fixed id and role metadata, sign in",
		Build:       buildAdminSeed,
	})
	register(Builtin{
		Name:        "realtime",
		Description: "join the realtime channel for the configured table",
		Build:       buildRealtime,
	})
	register(Builtin{
		Name:        "site-discovery",
		Description: "OPTIONS the website's candidate API paths and HEAD the backend path indicators",
		Build:       buildSiteDiscovery,
	})
	register(Builtin{
		Name:        "site-auth",
		Description: "post the configured website credential to each sign-in path and body shape",
		Build:       buildSiteAuth,
	})
}

// collect runs builders in order and stops at the first error.
func collect(fns ...func() (probe.Request, error)) ([]probe.Request, error) {
	out := make([]probe.Request, 0, len(fns))
	for _, fn := range fns {
		req, err := fn()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func buildAuthDebug(env Env) ([]probe.Request, error) {
	b, err := env.AuthBuilder()
	if err != nil {
		return nil, err
	}
	if err := env.requireIdentity(); err != nil {
		return nil, err
	}
	id := env.Config.Identity
	return collect(
		func() (probe.Request, error) {
			return b.SignUp(supabase.TierAnon, id.Email, id.Password, id.FullName)
		},
		func() (probe.Request, error) {
			return b.PasswordGrant(supabase.TierAnon, id.Email, id.Password)
		},
		func() (probe.Request, error) {
			return b.RestSelect(supabase.TierAnon, env.Config.Rest.Table, env.Config.Rest.Limit)
		},
	)
}

func buildAuthUsers(env Env) ([]probe.Request, error) {
	b, err := env.AuthBuilder()
	if err != nil {
		return nil, err
	}
	if err := env.requireIdentity(); err != nil {
		return nil, err
	}
	id := env.Config.Identity
	return collect(
		func() (probe.Request, error) { return b.AdminListUsers(supabase.TierService) },
		func() (probe.Request, error) {
			return b.SignUp(supabase.TierService, id.Email, id.Password, id.FullName)
		},
		func() (probe.Request, error) {
			return b.OTP(supabase.TierService, id.Email, true, map[string]any{"full_name": id.FullName})
		},
	)
}

func buildCreateUser(env Env) ([]probe.Request, error) {
	b, err := env.AuthBuilder()
	if err != nil {
		return nil, err
	}
	if err := env.requireIdentity(); err != nil {
		return nil, err
	}
	id := env.Config.Identity
	return collect(
		func() (probe.Request, error) {
			return b.AdminCreateUser(supabase.TierService, supabase.AdminUser{
				Email:        id.Email,
				Password:     id.Password,
				EmailConfirm: true,
				UserMetadata: map[string]any{"full_name": id.FullName},
			})
		},
		func() (probe.Request, error) {
			return b.PasswordGrant(supabase.TierService, id.Email, id.Password)
		},
	)
}

func buildAdminSeed(env Env) ([]probe.Request, error) {
	b, err := env.AuthBuilder()
	if err != nil {
		return nil, err
	}
	if err := env.requireIdentity(); err != nil {
		return nil, err
	}
	id := env.Config.Identity
	return collect(
		func() (probe.Request, error) { return b.AdminListUsers(supabase.TierService) },
		func() (probe.Request, error) {
			return b.AdminCreateUser(supabase.TierService, supabase.AdminUser{
				Email:        id.Email,
				Password:     id.Password,
				EmailConfirm: true,
				UserMetadata: map[string]any{"full_name": id.FullName, "role": id.Role},
				AppMetadata:  map[string]any{"role": id.Role, "provider": "email"},
			})
		},
		func() (probe.Request, error) {
			return b.PasswordGrant(supabase.TierAnon, id.Email, id.Password)
		},
	)
}

func buildRealtime(env Env) ([]probe.Request, error) {
	b, err := env.AuthBuilder()
	if err != nil {
		return nil, err
	}
	req, err := b.RealtimeJoin(supabase.TierAnon, env.Config.Rest.Table)
	if err != nil {
		return nil, err
	}
	return []probe.Request{req}, nil
}

func buildSiteDiscovery(env Env) ([]probe.Request, error) {
	base, err := env.SiteBase()
	if err != nil {
		return nil, err
	}
	site := env.Config.Site
	out := make([]probe.Request, 0, len(site.DiscoveryPaths)+len(site.IndicatorPaths))
	for _, p := range site.DiscoveryPaths {
		out = append(out, probe.Request{
			Name:   "options " + p,
			Kind:   probe.KindHTTP,
			Method: probe.MethodOptions,
			URL:    utils.JoinURL(base, p),
		})
	}
	for _, p := range site.IndicatorPaths {
		out = append(out, probe.Request{
			Name:   "head " + p,
			Kind:   probe.KindHTTP,
			Method: probe.MethodHead,
			URL:    utils.JoinURL(base, p),
		})
	}
	return out, nil
}

// bodyShape is one of the login payload layouts web backends commonly accept.
type bodyShape struct {
	name string
	body func(user, email, password string) map[string]any
	// needs reports whether the configured credential can fill this shape.
	needs func(user, email string) bool
}

var siteShapes = []bodyShape{
	{
		name:  "email",
		body:  func(_, email, pw string) map[string]any { return map[string]any{"email": email, "password": pw} },
		needs: func(_, email string) bool { return email != "" },
	},
	{
		name:  "username",
		body:  func(user, _, pw string) map[string]any { return map[string]any{"username": user, "password": pw} },
		needs: func(user, _ string) bool { return user != "" },
	},
	{
		name:  "userId",
		body:  func(user, _, pw string) map[string]any { return map[string]any{"userId": user, "password": pw} },
		needs: func(user, _ string) bool { return user != "" },
	},
}

func buildSiteAuth(env Env) ([]probe.Request, error) {
	base, err := env.SiteBase()
	if err != nil {
		return nil, err
	}
	site := env.Config.Site
	if site.Username == "" && site.Email == "" {
		return nil, errMissing("site.username or site.email")
	}
	jsonHeaders := map[string]string{"Content-Type": "application/json"}

	var out []probe.Request
	for _, p := range site.SigninPaths {
		for _, shape := range siteShapes {
			if !shape.needs(site.Username, site.Email) {
				continue
			}
			out = append(out, probe.Request{
				Name:    "signin " + p + " (" + shape.name + ")",
				Kind:    probe.KindHTTP,
				Method:  probe.MethodPost,
				URL:     utils.JoinURL(base, p),
				Headers: jsonHeaders,
				Body:    shape.body(site.Username, site.Email, site.Password),
			})
		}
	}
	if site.SignupPath != "" {
		body := map[string]any{"password": site.Password}
		if site.Username != "" {
			body["userId"] = site.Username
		}
		if site.Email != "" {
			body["email"] = site.Email
		}
		if name := env.Config.Identity.FullName; name != "" {
			body["name"] = name
		}
		out = append(out, probe.Request{
			Name:    "signup " + site.SignupPath,
			Kind:    probe.KindHTTP,
			Method:  probe.MethodPost,
			URL:     utils.JoinURL(base, site.SignupPath),
			Headers: jsonHeaders,
			Body:    body,
		})
	}
	return out, nil
}
