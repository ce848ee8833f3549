package sqlinline

const QInsertSong = `--sql 0b6f5a52-8f3e-4e61-9c1b-0d1f2b7d9a11
insert into songs(
  id,
  user_id,
  title,
  prompt,
  lyrics,
  duration,
  seed,
  local_filename,
  audio_url,
  status,
  meta,
  created_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::double precision,
  $7::bigint,
  $8::text,
  $9::text,
  $10::text,
  $11::jsonb,
  coalesce($12::timestamptz, now())
);
`

const QListSongsByUser = `--sql 7c2d94e1-3a5b-4f08-b6e2-91d4c8a0f357
select
  id,
  user_id,
  title,
  prompt,
  lyrics,
  duration,
  seed,
  local_filename,
  audio_url,
  status,
  meta,
  created_at
from songs
where user_id = $1::text
order by created_at desc
limit $2::int;
`
