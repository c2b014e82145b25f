package startcmd

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kokukuma/openid4vp-verifier/internal/log"
)

const commonEnvVarUsageText = " Alternatively, this can be set with the following environment variable: "

const (
	portFlagName  = "port"
	portEnvKey    = "SERVER_PORT"
	portFlagUsage = "Port to listen on." + commonEnvVarUsageText + portEnvKey
	defaultPort   = "3000"

	siteDNSFlagName  = "site-dns"
	siteDNSEnvKey    = "SITE_DNS"
	siteDNSFlagUsage = "Public base URL wallets use to reach this verifier, e.g. https://verifier.example." +
		commonEnvVarUsageText + siteDNSEnvKey
	defaultSiteDNS = "http://localhost"

	keysDirFlagName  = "keys-dir"
	keysDirEnvKey    = "VERIFIER_KEYS_DIR"
	keysDirFlagUsage = "Directory holding private-key.pem, public-key.pem and certificate.pem." +
		" Generated when missing." + commonEnvVarUsageText + keysDirEnvKey
	defaultKeysDir = "keys"

	publicDirFlagName  = "public-dir"
	publicDirEnvKey    = "VERIFIER_PUBLIC_DIR"
	publicDirFlagUsage = "Directory of the browser front-end. Empty disables it." +
		commonEnvVarUsageText + publicDirEnvKey
	defaultPublicDir = "public"

	requestTTLFlagName  = "request-ttl"
	requestTTLEnvKey    = "VERIFIER_REQUEST_TTL"
	requestTTLFlagUsage = "Lifetime of a presentation request, e.g. 1h." + commonEnvVarUsageText + requestTTLEnvKey

	storeTypeFlagName  = "store-type"
	storeTypeEnvKey    = "VERIFIER_STORE_TYPE"
	storeTypeFlagUsage = "Presentation request store (mem, redis)." + commonEnvVarUsageText + storeTypeEnvKey

	redisAddrsFlagName  = "redis-addrs"
	redisAddrsEnvKey    = "VERIFIER_REDIS_ADDRS"
	redisAddrsFlagUsage = "Comma separated redis addresses. Required for the redis store." +
		commonEnvVarUsageText + redisAddrsEnvKey

	redisPasswordFlagName  = "redis-password"
	redisPasswordEnvKey    = "VERIFIER_REDIS_PASSWORD" //nolint: gosec
	redisPasswordFlagUsage = "Redis password." + commonEnvVarUsageText + redisPasswordEnvKey

	redisMasterNameFlagName  = "redis-master-name"
	redisMasterNameEnvKey    = "VERIFIER_REDIS_MASTER_NAME"
	redisMasterNameFlagUsage = "Redis sentinel master name." + commonEnvVarUsageText + redisMasterNameEnvKey

	sweepIntervalFlagName  = "sweep-interval"
	sweepIntervalEnvKey    = "VERIFIER_SWEEP_INTERVAL"
	sweepIntervalFlagUsage = "How often the mem store purges old expired requests. 0 disables sweeping." +
		commonEnvVarUsageText + sweepIntervalEnvKey

	debugEnabledFlagName  = "debug-enabled"
	debugEnabledEnvKey    = "VERIFIER_DEBUG_ENABLED"
	debugEnabledFlagUsage = "Allow ?debug=true on request object retrieval." + commonEnvVarUsageText + debugEnabledEnvKey

	clientNameFlagName  = "client-name"
	clientNameEnvKey    = "VERIFIER_CLIENT_NAME"
	clientNameFlagUsage = "client_name announced in client_metadata." + commonEnvVarUsageText + clientNameEnvKey

	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "VERIFIER_LOG_LEVEL"
	logLevelFlagUsage = "Log level (debug, info, warn, error)." + commonEnvVarUsageText + logLevelEnvKey

	logEncodingFlagName  = "log-encoding"
	logEncodingEnvKey    = "VERIFIER_LOG_ENCODING"
	logEncodingFlagUsage = "Log encoding (console, json)." + commonEnvVarUsageText + logEncodingEnvKey
)

const (
	storeTypeMem   = "mem"
	storeTypeRedis = "redis"
)

type redisParameters struct {
	addrs      []string
	password   string
	masterName string
}

type startupParameters struct {
	port          string
	siteDNS       string
	keysDir       string
	publicDir     string
	requestTTL    time.Duration
	storeType     string
	redis         redisParameters
	sweepInterval time.Duration
	debugEnabled  bool
	clientName    string
	logLevel      log.Level
	logEncoding   string
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().String(portFlagName, "", portFlagUsage)
	startCmd.Flags().String(siteDNSFlagName, "", siteDNSFlagUsage)
	startCmd.Flags().String(keysDirFlagName, "", keysDirFlagUsage)
	startCmd.Flags().String(publicDirFlagName, "", publicDirFlagUsage)
	startCmd.Flags().String(requestTTLFlagName, "", requestTTLFlagUsage)
	startCmd.Flags().String(storeTypeFlagName, "", storeTypeFlagUsage)
	startCmd.Flags().String(redisAddrsFlagName, "", redisAddrsFlagUsage)
	startCmd.Flags().String(redisPasswordFlagName, "", redisPasswordFlagUsage)
	startCmd.Flags().String(redisMasterNameFlagName, "", redisMasterNameFlagUsage)
	startCmd.Flags().String(sweepIntervalFlagName, "", sweepIntervalFlagUsage)
	startCmd.Flags().String(debugEnabledFlagName, "", debugEnabledFlagUsage)
	startCmd.Flags().String(clientNameFlagName, "", clientNameFlagUsage)
	startCmd.Flags().String(logLevelFlagName, "", logLevelFlagUsage)
	startCmd.Flags().String(logEncodingFlagName, "", logEncodingFlagUsage)
}

func getStartupParameters(cmd *cobra.Command) (*startupParameters, error) {
	port := getUserSetVar(cmd, portFlagName, portEnvKey, defaultPort)
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", portFlagName, port, err)
	}

	siteDNS := strings.TrimRight(getUserSetVar(cmd, siteDNSFlagName, siteDNSEnvKey, defaultSiteDNS), "/")
	if u, err := url.Parse(siteDNS); err != nil || u.Scheme == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid %s %q: must be an absolute URL", siteDNSFlagName, siteDNS)
	}

	requestTTL, err := getDuration(cmd, requestTTLFlagName, requestTTLEnvKey, time.Hour)
	if err != nil {
		return nil, err
	}
	if requestTTL <= 0 {
		return nil, fmt.Errorf("%s must be positive", requestTTLFlagName)
	}

	sweepInterval, err := getDuration(cmd, sweepIntervalFlagName, sweepIntervalEnvKey, 0)
	if err != nil {
		return nil, err
	}

	storeType := strings.ToLower(getUserSetVar(cmd, storeTypeFlagName, storeTypeEnvKey, storeTypeMem))
	redisParams := redisParameters{
		password:   getUserSetVar(cmd, redisPasswordFlagName, redisPasswordEnvKey, ""),
		masterName: getUserSetVar(cmd, redisMasterNameFlagName, redisMasterNameEnvKey, ""),
	}
	for _, addr := range strings.Split(getUserSetVar(cmd, redisAddrsFlagName, redisAddrsEnvKey, ""), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			redisParams.addrs = append(redisParams.addrs, addr)
		}
	}

	switch storeType {
	case storeTypeMem:
	case storeTypeRedis:
		if len(redisParams.addrs) == 0 {
			return nil, fmt.Errorf("%s is required for the redis store", redisAddrsFlagName)
		}
	default:
		return nil, fmt.Errorf("unsupported %s %q", storeTypeFlagName, storeType)
	}

	debugEnabled, err := strconv.ParseBool(getUserSetVar(cmd, debugEnabledFlagName, debugEnabledEnvKey, "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", debugEnabledFlagName, err)
	}

	logLevel, err := log.ParseLevel(getUserSetVar(cmd, logLevelFlagName, logLevelEnvKey, "info"))
	if err != nil {
		return nil, err
	}

	return &startupParameters{
		port:          port,
		siteDNS:       siteDNS,
		keysDir:       getUserSetVar(cmd, keysDirFlagName, keysDirEnvKey, defaultKeysDir),
		publicDir:     getUserSetVar(cmd, publicDirFlagName, publicDirEnvKey, defaultPublicDir),
		requestTTL:    requestTTL,
		storeType:     storeType,
		redis:         redisParams,
		sweepInterval: sweepInterval,
		debugEnabled:  debugEnabled,
		clientName:    getUserSetVar(cmd, clientNameFlagName, clientNameEnvKey, ""),
		logLevel:      logLevel,
		logEncoding:   getUserSetVar(cmd, logEncodingFlagName, logEncodingEnvKey, log.Console),
	}, nil
}

// getUserSetVar returns the flag value when set, then the environment variable, then def.
func getUserSetVar(cmd *cobra.Command, flagName, envKey, def string) string {
	if cmd.Flags().Changed(flagName) {
		if value, err := cmd.Flags().GetString(flagName); err == nil && value != "" {
			return value
		}
	}

	if value, ok := os.LookupEnv(envKey); ok && value != "" {
		return value
	}

	return def
}

func getDuration(cmd *cobra.Command, flagName, envKey string, def time.Duration) (time.Duration, error) {
	value := getUserSetVar(cmd, flagName, envKey, "")
	if value == "" {
		return def, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", flagName, value, err)
	}
	return d, nil
}
