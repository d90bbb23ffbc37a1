package config

// SampleConfig is a complete configuration template with every option
const SampleConfig = `# Table Backup configuration file
# Values can also be set with TABLE_BACKUP_<SECTION>_<KEY> environment variables,
# e.g. TABLE_BACKUP_DATABASE_PASSWORD or TABLE_BACKUP_OAUTH_CLIENT_SECRET.

# Source database
database:
  driver: mysql            # mysql, postgres or sqlite3
  dsn: ""                  # full DSN, overrides the fields below (DATABASE_URL)
  host: localhost
  port: 3306
  username: backup
  password: ""             # prefer TABLE_BACKUP_DATABASE_PASSWORD
  database: app
  sslmode: ""              # postgres only
  timeout: 30s

# Local artifacts
export:
  directory: backup        # created if absent
  format: csv              # csv or xlsx
  compression: none        # none, gzip, lz4 or zstd
  encryption:
    enabled: false
    key_env_var: TABLE_BACKUP_ENCRYPTION_KEY
  queries:
    - name: registros
      sql: SELECT * FROM registros
    - name: demandas
      sql: SELECT * FROM demandas

# Microsoft identity platform credentials
oauth:
  grant: refresh_token     # refresh_token (delegated) or client_credentials (application)
  client_id: ""            # CLIENT_ID / MS_CLIENT_ID
  tenant_id: ""            # TENANT_ID / MS_TENANT_ID
  refresh_token: ""        # ONEDRIVE_REFRESH_TOKEN, takes precedence over the file
  refresh_token_file: ""   # written by "table-backup authorize", rotated tokens are saved here
  client_secret: ""        # MS_CLIENT_SECRET, client_credentials only
  scopes: []               # default Files.ReadWrite.All, or .default for client_credentials
  authority_host: https://login.microsoftonline.com
  redirect_url: http://localhost:5000
  timeout: 30s

# Primary destination
onedrive:
  folder: Backups
  graph_url: https://graph.microsoft.com/v1.0
  user: ""                 # empty uses /me; set a UPN or id for application tokens
  timeout: 5m

# Optional mirrors, attempted after OneDrive
mirrors:
  # s3:
  #   bucket: my-backups
  #   region: us-east-1
  #   prefix: tables/
  #   endpoint: ""         # S3-compatible endpoint, enables path-style addressing
  # gcs:
  #   bucket: my-backups
  #   credentials_path: /etc/table-backup/gcs.json
  # azure:
  #   account_name: myaccount
  #   account_key: ""
  #   container: backups
  # local:
  #   directory: /mnt/nas/backups

# Run summary notifications
notify:
  webhook_url: ""
  teams_webhook_url: ""
  only_on_failure: false
  timeout: 30s

log:
  level: normal            # quiet, normal, verbose or debug
  format: text             # text or json
  file: ""                 # also write logs to this file

# Exit status: 0 ok, 1 unknown, 2 configuration, 3 database, 4 token,
# 5 upload failed, 6 artifact missing at upload time.
`
