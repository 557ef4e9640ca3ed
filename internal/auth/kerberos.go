package auth

import (
	"context"
	"fmt"
	"time"

	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/service"

	"github.com/fbremote/fbremote/internal/protoerr"
)

// KerberosProvider holds the server's long-lived Kerberos material: the
// keytab used to decrypt service tickets, the realm configuration, and the
// clock-skew tolerance applied to every ticket it verifies.
type KerberosProvider struct {
	keytab           *keytab.Keytab
	krb5Conf         *krb5config.Config
	servicePrincipal string
	maxClockSkew     time.Duration
}

// LoadKerberosProvider reads a keytab and krb5.conf from disk.
func LoadKerberosProvider(keytabPath, krb5ConfPath, servicePrincipal string, maxClockSkew time.Duration) (*KerberosProvider, error) {
	kt, err := keytab.Load(keytabPath)
	if err != nil {
		return nil, fmt.Errorf("kerberos: load keytab %s: %w", keytabPath, err)
	}
	cfg, err := krb5config.Load(krb5ConfPath)
	if err != nil {
		return nil, fmt.Errorf("kerberos: load krb5.conf %s: %w", krb5ConfPath, err)
	}
	return &KerberosProvider{
		keytab:           kt,
		krb5Conf:         cfg,
		servicePrincipal: servicePrincipal,
		maxClockSkew:     maxClockSkew,
	}, nil
}

// kerberosServerPlugin implements Plugin by verifying a single AP-REQ the
// client sends as its one cont_auth round; unlike the RPCSEC_GSS context
// this engine's auth sub-protocol has no sequence window or wrap/unwrap
// service levels, just a yes/no identity check ahead of the session.
type kerberosServerPlugin struct {
	provider *KerberosProvider
}

// NewKerberosServerPlugin returns a ServerFactory bound to provider.
func NewKerberosServerPlugin(provider *KerberosProvider) ServerFactory {
	return func() (Plugin, error) {
		return &kerberosServerPlugin{provider: provider}, nil
	}
}

func (p *kerberosServerPlugin) Name() string { return "Kerberos" }

func (p *kerberosServerPlugin) Step(_ context.Context, dataIn []byte) (Step, error) {
	var apReq messages.APReq
	if err := apReq.Unmarshal(dataIn); err != nil {
		return Step{}, protoerr.NewAuthenticationError(fmt.Errorf("kerberos: unmarshal AP-REQ: %w", err))
	}

	settings := service.NewSettings(
		p.provider.keytab,
		service.MaxClockSkew(p.provider.maxClockSkew),
		service.DecodePAC(false),
		service.KeytabPrincipal(p.provider.servicePrincipal),
	)

	ok, creds, err := service.VerifyAPREQ(&apReq, settings)
	if err != nil {
		return Step{}, protoerr.NewAuthenticationError(fmt.Errorf("kerberos: verify AP-REQ: %w", err))
	}
	if !ok {
		return Step{}, protoerr.NewAuthenticationError(fmt.Errorf("kerberos: AP-REQ rejected"))
	}

	return Step{
		Done: true,
		Identity: &Identity{
			Username: creds.CName().PrincipalNameString(),
			Realm:    creds.Domain(),
		},
	}, nil
}
